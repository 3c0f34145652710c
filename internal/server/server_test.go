package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drishti/internal/domain"
	"drishti/internal/engine"
	"drishti/internal/gateway"
)

type stubProvider struct {
	text string
	err  error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Interpret(ctx context.Context, req gateway.Request) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.text, nil
}

type fakeStore struct {
	replaced [][]domain.Record
}

func (f *fakeStore) ReplaceRecords(records []domain.Record) (int, error) {
	f.replaced = append(f.replaced, records)
	return len(records), nil
}

func newTestServer(t *testing.T, provider gateway.Provider) (*httptest.Server, *fakeStore) {
	t.Helper()
	eng := engine.New(engine.Options{Seed: 1})
	gw := gateway.New(gateway.Config{RequestTimeout: time.Second, RatePerMinute: 6000},
		provider, gateway.NewBreaker(gateway.DefaultBreakerConfig()), nil)
	store := &fakeStore{}
	srv := httptest.NewServer(New(eng, store, gw, "national").Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func uploadBatch(t *testing.T, srv *httptest.Server, days int) {
	t.Helper()
	records := make([]domain.Record, days)
	for i := range records {
		records[i] = domain.Record{
			Region:         fmt.Sprintf("Region-%d", i%3),
			Date:           fmt.Sprintf("2026-03-%02d", i+1),
			Age0to5:        5,
			Age5to17:       10,
			TotalUpdates:   int64(400 + 10*i),
			TotalEnrolment: int64(900 + 5*i),
		}
	}
	body, _ := json.Marshal(records)
	resp, err := http.Post(srv.URL+"/api/upload-data", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("uploading: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on upload, got %d", resp.StatusCode)
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{text: "ok"})
	var body map[string]string
	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "online" {
		t.Fatalf("expected online status, got %v", body)
	}
}

func TestUploadAndSummary(t *testing.T) {
	srv, store := newTestServer(t, &stubProvider{text: "ok"})
	uploadBatch(t, srv, 5)

	if len(store.replaced) != 1 || len(store.replaced[0]) != 5 {
		t.Fatalf("expected one stored batch of 5, got %+v", store.replaced)
	}

	var records []domain.Record
	if code := getJSON(t, srv.URL+"/api/summary", &records); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records back, got %d", len(records))
	}
}

func TestUploadRejectsNegativeCounts(t *testing.T) {
	srv, store := newTestServer(t, &stubProvider{text: "ok"})

	body := `[{"region":"North","date":"2026-03-01","total_updates":-5}]`
	resp, err := http.Post(srv.URL+"/api/upload-data", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("uploading: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative counts, got %d", resp.StatusCode)
	}
	if len(store.replaced) != 0 {
		t.Fatal("expected rejected batch not to reach the store")
	}
}

func TestModelComparisonStates(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{text: "ok"})

	var state map[string]any
	getJSON(t, srv.URL+"/api/model-comparison", &state)
	if state["state"] != "pending" {
		t.Fatalf("expected pending before any data, got %v", state["state"])
	}

	uploadBatch(t, srv, 3)
	getJSON(t, srv.URL+"/api/model-comparison", &state)
	if state["state"] != "insufficient_history" {
		t.Fatalf("expected insufficient_history with 3 days, got %v", state["state"])
	}

	uploadBatch(t, srv, 25)
	getJSON(t, srv.URL+"/api/model-comparison", &state)
	if state["state"] != "ready" {
		t.Fatalf("expected ready with 25 days, got %v", state)
	}
	if state["comparison"] == nil {
		t.Fatal("expected comparison payload when ready")
	}
}

func TestGovernanceIndices(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{text: "ok"})
	uploadBatch(t, srv, 5)

	var indices []map[string]any
	if code := getJSON(t, srv.URL+"/api/governance-indices", &indices); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(indices) != 5 {
		t.Fatalf("expected 5 indices, got %d", len(indices))
	}
	if indices[0]["subject"] != "Update Compliance" {
		t.Fatalf("expected fixed subject order, got %v", indices[0]["subject"])
	}
}

func TestPivotValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{text: "ok"})
	uploadBatch(t, srv, 5)

	var entries []domain.PivotEntry
	if code := getJSON(t, srv.URL+"/api/pivot?dimension=region&metric=total_updates", &entries); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 region entries, got %d", len(entries))
	}

	var errBody map[string]string
	if code := getJSON(t, srv.URL+"/api/pivot?dimension=planet", &errBody); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown dimension, got %d", code)
	}
}

func TestAIInterpretUsesDefaultModel(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{text: "Deploy extra kits to high-volume districts."})
	uploadBatch(t, srv, 25)

	resp, err := http.Post(srv.URL+"/api/ai-interpret", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("interpreting: %v", err)
	}
	defer resp.Body.Close()

	var briefing gateway.Response
	if err := json.NewDecoder(resp.Body).Decode(&briefing); err != nil {
		t.Fatalf("decoding briefing: %v", err)
	}
	if briefing.Degraded {
		t.Fatalf("expected live briefing, got reason=%s", briefing.Reason)
	}
	if briefing.Text != "Deploy extra kits to high-volume districts." {
		t.Fatalf("unexpected briefing text: %q", briefing.Text)
	}
	if briefing.ID == "" {
		t.Fatal("expected a briefing id")
	}
}

func TestAIInterpretNotReady(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{text: "ok"})

	resp, err := http.Post(srv.URL+"/api/ai-interpret", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("interpreting: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["state"] != "pending" {
		t.Fatalf("expected pending briefing state, got %v", body)
	}
}

func TestAIInterpretDegradedOnUpstreamFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{err: &gateway.UpstreamError{Status: 503, Msg: "down"}})
	uploadBatch(t, srv, 25)

	resp, err := http.Post(srv.URL+"/api/ai-interpret", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("interpreting: %v", err)
	}
	defer resp.Body.Close()

	var briefing gateway.Response
	if err := json.NewDecoder(resp.Body).Decode(&briefing); err != nil {
		t.Fatalf("decoding briefing: %v", err)
	}
	if !briefing.Degraded || briefing.Reason != gateway.ReasonUpstream {
		t.Fatalf("expected degraded upstream briefing, got %+v", briefing)
	}
	if !strings.HasPrefix(briefing.Text, "[Degraded mode") {
		t.Fatalf("expected degraded prefix, got %q", briefing.Text)
	}
}
