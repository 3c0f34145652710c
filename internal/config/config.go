package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
	Timezone   string `yaml:"timezone"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	LLMProvider      string `yaml:"llm_provider"` // "anthropic" or "http"
	LLMModel         string `yaml:"llm_model"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	BriefingEndpoint string `yaml:"briefing_endpoint"`

	BriefingTimeoutSeconds  int    `yaml:"briefing_timeout_seconds"`
	BriefingRatePerMinute   int    `yaml:"briefing_rate_per_minute"`
	BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int    `yaml:"breaker_cooldown_seconds"`
	BriefingScopeLabel      string `yaml:"briefing_scope_label"`

	PivotLimit         int     `yaml:"pivot_limit"`
	ForecastWindows    int     `yaml:"forecast_windows"`
	ForecastSeed       int64   `yaml:"forecast_seed"`
	StabilityTolerance float64 `yaml:"stability_tolerance"`

	RefreshSchedule string `yaml:"refresh_schedule"` // 5-field cron; empty disables
	SlackBotToken   string `yaml:"slack_bot_token"`
	SlackChannelID  string `yaml:"slack_channel_id"`

	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.BriefingEndpoint, "BRIEFING_ENDPOINT")
	envOverrideInt(&cfg.BriefingTimeoutSeconds, "BRIEFING_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.BriefingRatePerMinute, "BRIEFING_RATE_PER_MINUTE")
	envOverrideInt(&cfg.BreakerFailureThreshold, "BREAKER_FAILURE_THRESHOLD")
	envOverrideInt(&cfg.BreakerCooldownSeconds, "BREAKER_COOLDOWN_SECONDS")
	envOverride(&cfg.BriefingScopeLabel, "BRIEFING_SCOPE_LABEL")
	envOverrideInt(&cfg.PivotLimit, "PIVOT_LIMIT")
	envOverrideInt(&cfg.ForecastWindows, "FORECAST_WINDOWS")
	envOverrideFloat(&cfg.StabilityTolerance, "STABILITY_TOLERANCE")
	envOverride(&cfg.RefreshSchedule, "REFRESH_SCHEDULE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./drishti.db"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.BriefingTimeoutSeconds == 0 {
		cfg.BriefingTimeoutSeconds = 15
	}
	if cfg.BriefingRatePerMinute == 0 {
		cfg.BriefingRatePerMinute = 30
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 3
	}
	if cfg.BreakerCooldownSeconds == 0 {
		cfg.BreakerCooldownSeconds = 30
	}
	if cfg.BriefingScopeLabel == "" {
		cfg.BriefingScopeLabel = "national"
	}
	if cfg.PivotLimit == 0 {
		cfg.PivotLimit = 12
	}
	if cfg.ForecastWindows == 0 {
		cfg.ForecastWindows = 5
	}
	if cfg.ForecastSeed == 0 {
		cfg.ForecastSeed = 1
	}
	if cfg.StabilityTolerance == 0 {
		cfg.StabilityTolerance = 0.01
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("Invalid timezone '%s': %v, using local time", cfg.Timezone, err)
		loc = time.Local
	}
	cfg.Location = loc

	// Validate required fields
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "http":
		if cfg.BriefingEndpoint == "" {
			log.Fatalf("briefing_endpoint is required when llm_provider=http")
		}
	default:
		log.Fatalf("Unknown llm_provider '%s' (expected anthropic or http)", cfg.LLMProvider)
	}

	if cfg.SlackChannelID != "" && cfg.SlackBotToken == "" {
		log.Fatalf("slack_bot_token is required when slack_channel_id is set")
	}

	return cfg
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Fatalf("Invalid %s '%s': %v", key, v, err)
		}
		*target = n
	}
}

func envOverrideFloat(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			log.Fatalf("Invalid %s '%s': %v", key, v, err)
		}
		*target = f
	}
}
