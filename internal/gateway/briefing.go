// Package gateway wraps the external text-generation service behind a
// circuit breaker and a strict read-only boundary: only the structured
// numeric fields of a briefing request ever cross the wire, and the response
// is treated purely as display text. Loss of this layer degrades to a
// deterministic fallback; it never blocks the data, forecast, or governance
// views.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Reason classifies why a briefing degraded to the fallback.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonBreakerOpen Reason = "breaker_open"
	ReasonTimeout     Reason = "gateway_timeout"
	ReasonUpstream    Reason = "gateway_upstream_error"
	ReasonMalformed   Reason = "gateway_malformed_response"
)

// Request carries the only fields that may reach the external service.
type Request struct {
	Model      string  `json:"model"`
	Volume     float64 `json:"volume"`
	Confidence float64 `json:"confidence"`
	ScopeLabel string  `json:"scope_label"`
}

// Response is the briefing text, or the degraded fallback with its reason.
type Response struct {
	ID       string `json:"id"`
	Text     string `json:"interpretation"`
	Degraded bool   `json:"degraded"`
	Reason   Reason `json:"reason,omitempty"`
}

// Provider generates briefing text from a structured request. Implementations
// must send only the request's fields, never raw records.
type Provider interface {
	Name() string
	Interpret(ctx context.Context, req Request) (string, error)
}

// AuditSink records every briefing attempt. Failures to audit are logged,
// never surfaced to the caller.
type AuditSink interface {
	RecordBriefing(id string, req Request, resp Response, breakerState string) error
}

// Config tunes the gateway around the provider.
type Config struct {
	// RequestTimeout bounds the external call, independent of breaker state.
	RequestTimeout time.Duration
	// RatePerMinute caps calls to the external service; waiting for a slot
	// still counts against the request timeout.
	RatePerMinute int
}

// DefaultConfig allows 30 calls/minute with a 15s per-request timeout.
func DefaultConfig() Config {
	return Config{RequestTimeout: 15 * time.Second, RatePerMinute: 30}
}

// Gateway is the briefing entry point.
type Gateway struct {
	cfg      Config
	provider Provider
	breaker  *Breaker
	limiter  *rate.Limiter
	audit    AuditSink
}

// New builds a gateway around the given provider and breaker. audit may be
// nil when no audit log is configured.
func New(cfg Config, provider Provider, breaker *Breaker, audit AuditSink) *Gateway {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = DefaultConfig().RatePerMinute
	}
	return &Gateway{
		cfg:      cfg,
		provider: provider,
		breaker:  breaker,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute),
		audit:    audit,
	}
}

// Briefing converts the structured request into narrative text, or into the
// degraded fallback with a reason the caller can message on. Every call gets
// its own timeout; the only retry in the system is the breaker's own
// probe-after-cooldown.
func (g *Gateway) Briefing(ctx context.Context, req Request) Response {
	req = sanitize(req)
	id := uuid.NewString()

	if err := g.breaker.Allow(); err != nil {
		log.Printf("briefing short-circuit id=%s state=%s", id, g.breaker.State())
		return g.finish(id, req, fallback(req, ReasonBreakerOpen))
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	if err := g.limiter.Wait(callCtx); err != nil {
		// Local rate pressure, not an upstream failure: the breaker run is
		// left untouched, but the probe slot must be released.
		g.releaseProbe()
		log.Printf("briefing rate-limited id=%s err=%v", id, err)
		return g.finish(id, req, fallback(req, ReasonTimeout))
	}

	text, err := g.provider.Interpret(callCtx, req)
	if err != nil {
		reason := classify(err)
		g.breaker.RecordFailure()
		log.Printf("briefing degraded id=%s provider=%s reason=%s err=%v", id, g.provider.Name(), reason, err)
		return g.finish(id, req, fallback(req, reason))
	}

	g.breaker.RecordSuccess()
	text = strings.TrimSpace(text)
	log.Printf("briefing ok id=%s provider=%s size=%d", id, g.provider.Name(), len(text))
	return g.finish(id, req, Response{Text: text})
}

// BreakerState exposes the breaker position for status endpoints.
func (g *Gateway) BreakerState() BreakerState { return g.breaker.State() }

func (g *Gateway) finish(id string, req Request, resp Response) Response {
	resp.ID = id
	if g.audit != nil {
		if err := g.audit.RecordBriefing(id, req, resp, g.breaker.State().String()); err != nil {
			log.Printf("briefing audit error id=%s err=%v", id, err)
		}
	}
	return resp
}

// releaseProbe undoes a granted half-open probe slot without recording an
// upstream outcome.
func (g *Gateway) releaseProbe() {
	g.breaker.mu.Lock()
	defer g.breaker.mu.Unlock()
	if g.breaker.state == StateHalfOpen {
		g.breaker.probing = false
	}
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout
	case errors.As(err, new(*UpstreamError)):
		return ReasonUpstream
	case errors.Is(err, ErrMalformedResponse):
		return ReasonMalformed
	default:
		return ReasonUpstream
	}
}

// sanitize clamps the numeric fields into their documented ranges and trims
// the scope label before anything leaves the process.
func sanitize(req Request) Request {
	if req.Volume < 0 || math.IsNaN(req.Volume) {
		req.Volume = 0
	}
	switch {
	case math.IsNaN(req.Confidence), req.Confidence < 0:
		req.Confidence = 0
	case req.Confidence > 1:
		req.Confidence = 1
	}
	req.Model = strings.TrimSpace(req.Model)
	req.ScopeLabel = strings.TrimSpace(req.ScopeLabel)
	if len(req.ScopeLabel) > 120 {
		req.ScopeLabel = req.ScopeLabel[:120]
	}
	return req
}

// fallbackStrategies are the degraded-mode texts; the prefix in fallback
// keeps them from being mistaken for live model narrative.
var fallbackStrategies = [...]string{
	"Projected surge monitoring continues on cached forecasts. Recommendation: hold current field allocation and re-run the briefing once the advisory service recovers.",
	"Forecast figures remain available offline. Strategic directive: review the governance indices directly; no narrative guidance is available this cycle.",
	"Forecast stability can be read from the model comparison view. No staff redistribution guidance can be generated until the advisory service is reachable.",
}

// fallback builds the deterministic degraded response: the same request
// always yields the same text.
func fallback(req Request, reason Reason) Response {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%.0f|%s", req.Model, req.Volume, req.ScopeLabel)
	text := fallbackStrategies[h.Sum32()%uint32(len(fallbackStrategies))]
	return Response{
		Text:     "[Degraded mode — advisory service unavailable] " + text,
		Degraded: true,
		Reason:   reason,
	}
}
