package gateway

import (
	"context"
	"strings"
	"testing"
	"time"
)

type scriptedProvider struct {
	calls int
	text  string
	err   error
	last  Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Interpret(ctx context.Context, req Request) (string, error) {
	p.calls++
	p.last = req
	if p.err != nil {
		return "", p.err
	}
	return p.text, nil
}

type memAudit struct {
	ids     []string
	reasons []Reason
	states  []string
}

func (a *memAudit) RecordBriefing(id string, req Request, resp Response, breakerState string) error {
	a.ids = append(a.ids, id)
	a.reasons = append(a.reasons, resp.Reason)
	a.states = append(a.states, breakerState)
	return nil
}

func newTestGateway(p Provider, audit AuditSink) (*Gateway, *Breaker) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: 30 * time.Second})
	g := New(Config{RequestTimeout: time.Second, RatePerMinute: 6000}, p, b, audit)
	return g, b
}

func briefingReq() Request {
	return Request{Model: "random_forest", Volume: 1200, Confidence: 0.8, ScopeLabel: "national"}
}

func TestBriefingSuccess(t *testing.T) {
	p := &scriptedProvider{text: "  Volumes look steady.  "}
	audit := &memAudit{}
	g, _ := newTestGateway(p, audit)

	resp := g.Briefing(context.Background(), briefingReq())
	if resp.Degraded {
		t.Fatalf("expected live response, got degraded reason=%s", resp.Reason)
	}
	if resp.Text != "Volumes look steady." {
		t.Fatalf("expected trimmed text, got %q", resp.Text)
	}
	if resp.ID == "" {
		t.Fatal("expected a briefing id")
	}
	if len(audit.ids) != 1 || audit.ids[0] != resp.ID {
		t.Fatalf("expected one audit entry for %s, got %v", resp.ID, audit.ids)
	}
	if g.BreakerState() != StateClosed {
		t.Fatalf("expected breaker closed after success, got %s", g.BreakerState())
	}
}

func TestBriefingOpensBreakerAndShortCircuits(t *testing.T) {
	p := &scriptedProvider{err: &UpstreamError{Status: 503, Msg: "unavailable"}}
	audit := &memAudit{}
	g, _ := newTestGateway(p, audit)

	// Threshold is 2 consecutive failures.
	for i := 0; i < 2; i++ {
		resp := g.Briefing(context.Background(), briefingReq())
		if !resp.Degraded || resp.Reason != ReasonUpstream {
			t.Fatalf("call %d: expected upstream degradation, got %+v", i, resp)
		}
	}
	if g.BreakerState() != StateOpen {
		t.Fatalf("expected breaker open, got %s", g.BreakerState())
	}

	calls := p.calls
	resp := g.Briefing(context.Background(), briefingReq())
	if resp.Reason != ReasonBreakerOpen {
		t.Fatalf("expected breaker_open reason, got %s", resp.Reason)
	}
	if !resp.Degraded {
		t.Fatal("expected degraded response while open")
	}
	if p.calls != calls {
		t.Fatalf("expected no provider call while open, got %d extra", p.calls-calls)
	}
	if len(audit.reasons) != 3 || audit.reasons[2] != ReasonBreakerOpen {
		t.Fatalf("expected short-circuit audited, got %v", audit.reasons)
	}
}

func TestBriefingReasonClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reason
	}{
		{"upstream", &UpstreamError{Status: 500, Msg: "boom"}, ReasonUpstream},
		{"malformed", ErrMalformedResponse, ReasonMalformed},
		{"timeout", context.DeadlineExceeded, ReasonTimeout},
	}
	for _, tc := range cases {
		p := &scriptedProvider{err: tc.err}
		g, _ := newTestGateway(p, nil)
		resp := g.Briefing(context.Background(), briefingReq())
		if !resp.Degraded || resp.Reason != tc.want {
			t.Fatalf("%s: expected reason %s, got degraded=%v reason=%s", tc.name, tc.want, resp.Degraded, resp.Reason)
		}
	}
}

func TestBriefingFallbackDeterministic(t *testing.T) {
	p := &scriptedProvider{err: &UpstreamError{Status: 500, Msg: "boom"}}
	g, _ := newTestGateway(p, nil)

	a := g.Briefing(context.Background(), briefingReq())
	b := g.Briefing(context.Background(), briefingReq())
	if a.Text != b.Text {
		t.Fatalf("expected deterministic fallback, got %q then %q", a.Text, b.Text)
	}
	if !strings.HasPrefix(a.Text, "[Degraded mode") {
		t.Fatalf("expected degraded prefix, got %q", a.Text)
	}
}

func TestBriefingSanitizesOutboundFields(t *testing.T) {
	p := &scriptedProvider{text: "ok"}
	g, _ := newTestGateway(p, nil)

	long := strings.Repeat("x", 200)
	g.Briefing(context.Background(), Request{
		Model:      " random_forest ",
		Volume:     -50,
		Confidence: 1.7,
		ScopeLabel: long,
	})

	if p.last.Volume != 0 {
		t.Fatalf("expected negative volume clamped to 0, got %f", p.last.Volume)
	}
	if p.last.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %f", p.last.Confidence)
	}
	if p.last.Model != "random_forest" {
		t.Fatalf("expected trimmed model, got %q", p.last.Model)
	}
	if len(p.last.ScopeLabel) != 120 {
		t.Fatalf("expected scope label capped at 120, got %d", len(p.last.ScopeLabel))
	}
}

func TestBriefingProbeRecovery(t *testing.T) {
	p := &scriptedProvider{err: &UpstreamError{Status: 502, Msg: "bad gateway"}}
	g, b := newTestGateway(p, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	g.Briefing(context.Background(), briefingReq())
	g.Briefing(context.Background(), briefingReq())
	if g.BreakerState() != StateOpen {
		t.Fatalf("expected open, got %s", g.BreakerState())
	}

	// After the cooldown the next call probes; a healthy upstream closes the
	// breaker again.
	p.err = nil
	p.text = "recovered"
	now = now.Add(31 * time.Second)

	resp := g.Briefing(context.Background(), briefingReq())
	if resp.Degraded {
		t.Fatalf("expected live probe response, got reason=%s", resp.Reason)
	}
	if resp.Text != "recovered" {
		t.Fatalf("expected provider text, got %q", resp.Text)
	}
	if g.BreakerState() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", g.BreakerState())
	}
}
