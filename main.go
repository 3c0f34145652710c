package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"

	"drishti/internal/config"
	"drishti/internal/engine"
	"drishti/internal/gateway"
	"drishti/internal/httpx"
	"drishti/internal/notify"
	"drishti/internal/server"
	"drishti/internal/storage/sqlite"
)

func main() {
	cfg := config.LoadConfig()
	httpx.Configure(cfg.ExternalHTTPTimeoutSeconds)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer store.Close()

	eng := engine.New(engine.Options{
		Windows:            cfg.ForecastWindows,
		StabilityTolerance: cfg.StabilityTolerance,
		PivotLimit:         cfg.PivotLimit,
		Seed:               cfg.ForecastSeed,
	})

	records, err := store.LoadRecords()
	if err != nil {
		log.Fatalf("Failed to load records: %v", err)
	}
	if len(records) > 0 {
		eng.SetRecords(records)
		log.Printf("Loaded %d records from %s", len(records), cfg.DBPath)
	}

	var provider gateway.Provider
	switch cfg.LLMProvider {
	case "http":
		provider = gateway.NewHTTPProvider(cfg.BriefingEndpoint, httpx.ExternalClient())
	default:
		provider = gateway.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.LLMModel)
	}

	breaker := gateway.NewBreaker(gateway.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         time.Duration(cfg.BreakerCooldownSeconds) * time.Second,
	})
	gw := gateway.New(gateway.Config{
		RequestTimeout: time.Duration(cfg.BriefingTimeoutSeconds) * time.Second,
		RatePerMinute:  cfg.BriefingRatePerMinute,
	}, provider, breaker, store)

	var notifier *notify.Notifier
	if cfg.SlackChannelID != "" {
		api := slack.New(cfg.SlackBotToken)
		notifier = notify.New(api, cfg.SlackChannelID)
	}

	StartRefreshScheduler(cfg, eng, gw, notifier)

	srv := server.New(eng, store, gw, cfg.BriefingScopeLabel)
	log.Printf("Starting Drishti engine on %s (provider: %s)", cfg.ListenAddr, provider.Name())
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Handler()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// StartRefreshScheduler runs a cron-based loop that recomputes the analytics
// snapshot and, when Slack is configured, posts the default model's briefing.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
func StartRefreshScheduler(cfg config.Config, eng *engine.Engine, gw *gateway.Gateway, notifier *notify.Notifier) {
	schedule := strings.TrimSpace(cfg.RefreshSchedule)
	if schedule == "" {
		log.Println("Scheduled refresh disabled (refresh_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid refresh_schedule '%s': %v, scheduled refresh disabled", schedule, err)
		return
	}
	log.Printf("Refresh scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next refresh at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			eng.Refresh()
			model, estimate, confidence, inputErr := eng.DefaultBriefingInput(cfg.BriefingScopeLabel)
			if inputErr != nil {
				log.Printf("Scheduled briefing skipped: %v", inputErr)
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(),
				time.Duration(cfg.BriefingTimeoutSeconds+5)*time.Second)
			resp := gw.Briefing(ctx, gateway.Request{
				Model:      model,
				Volume:     estimate,
				Confidence: confidence,
				ScopeLabel: cfg.BriefingScopeLabel,
			})
			cancel()
			log.Printf("Scheduled briefing complete degraded=%v reason=%s", resp.Degraded, resp.Reason)

			if notifier != nil {
				notifier.PostBriefing(model, estimate, resp.Text)
			}
		}
	}()
}
