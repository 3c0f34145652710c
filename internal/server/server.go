// Package server exposes the derived views over HTTP. Every endpoint except
// ingestion and briefing is read-only; the presentation layer gets view
// models and no mutation path into the core.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"drishti/internal/aggregate"
	"drishti/internal/arbiter"
	"drishti/internal/domain"
	"drishti/internal/engine"
	"drishti/internal/forecast"
	"drishti/internal/gateway"
)

// RecordStore is the persistence boundary the server writes ingested
// snapshots through.
type RecordStore interface {
	ReplaceRecords(records []domain.Record) (int, error)
}

// Server wires the engine, store, and briefing gateway to HTTP handlers.
type Server struct {
	engine *engine.Engine
	store  RecordStore
	gw     *gateway.Gateway
	scope  string
}

// New builds the server; store may be nil for in-memory-only operation.
func New(eng *engine.Engine, store RecordStore, gw *gateway.Gateway, scopeLabel string) *Server {
	return &Server{engine: eng, store: store, gw: gw, scope: scopeLabel}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/upload-data", s.handleUpload)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/pivot", s.handlePivot)
	mux.HandleFunc("/api/demographics", s.handleDemographics)
	mux.HandleFunc("/api/model-comparison", s.handleComparison)
	mux.HandleFunc("/api/governance-indices", s.handleIndices)
	mux.HandleFunc("/api/ai-interpret", s.handleInterpret)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "online",
		"system": "drishti command center",
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	records := s.engine.Records()
	if records == nil {
		records = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var records []domain.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": fmt.Sprintf("decoding records: %v", err),
		})
		return
	}
	for i, rec := range records {
		if rec.Age0to5 < 0 || rec.Age5to17 < 0 || rec.Age18Plus < 0 ||
			rec.TotalUpdates < 0 || rec.TotalEnrolment < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "error", "message": fmt.Sprintf("record %d has negative counts", i),
			})
			return
		}
	}

	if s.store != nil {
		if _, err := s.store.ReplaceRecords(records); err != nil {
			log.Printf("server upload store error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "storing records failed",
			})
			return
		}
	}
	s.engine.SetRecords(records)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Successfully ingested %d records.", len(records)),
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	series := s.engine.Series()
	points := series.Points
	if points == nil {
		points = []domain.SeriesPoint{}
	}
	resp := map[string]any{"points": points}
	if series.Unknown != nil {
		resp["unknown"] = series.Unknown
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePivot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	dim := aggregate.Dimension(r.URL.Query().Get("dimension"))
	switch dim {
	case aggregate.ByRegion, aggregate.ByDate, aggregate.ByAgeBand:
	case "":
		dim = aggregate.ByRegion
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": fmt.Sprintf("unknown dimension '%s'", dim),
		})
		return
	}
	metric := aggregate.Metric(r.URL.Query().Get("metric"))
	switch metric {
	case aggregate.MetricUpdates, aggregate.MetricEnrolments:
	case "":
		metric = aggregate.MetricUpdates
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": fmt.Sprintf("unknown metric '%s'", metric),
		})
		return
	}

	entries := s.engine.Pivot(dim, metric)
	if entries == nil {
		entries = []domain.PivotEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDemographics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Demographics())
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	cmp, err := s.engine.Comparison()
	if err != nil {
		// Not-ready states are data, not failures: the consumer must be able
		// to tell "no forecast yet" from "forecast of zero".
		state := "pending"
		if errors.Is(err, forecast.ErrInsufficientHistory) {
			state = "insufficient_history"
		} else if errors.Is(err, arbiter.ErrPending) {
			state = "pending"
		}
		writeJSON(w, http.StatusOK, map[string]string{"state": state, "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": "ready", "comparison": cmp})
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Indices())
}

func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req gateway.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": fmt.Sprintf("decoding request: %v", err),
		})
		return
	}

	// An empty request asks for the current default model's briefing.
	if req.Model == "" {
		model, estimate, confidence, err := s.engine.DefaultBriefingInput(s.scope)
		if err != nil {
			state := "pending"
			if errors.Is(err, forecast.ErrInsufficientHistory) {
				state = "insufficient_history"
			}
			writeJSON(w, http.StatusOK, map[string]string{"state": state, "detail": err.Error()})
			return
		}
		req.Model = model
		req.Volume = estimate
		req.Confidence = confidence
	}
	if req.ScopeLabel == "" {
		req.ScopeLabel = s.scope
	}

	resp := s.gw.Briefing(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server encode error: %v", err)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"status": "error", "message": "method not allowed",
	})
}
