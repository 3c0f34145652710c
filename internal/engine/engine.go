// Package engine owns the analytics pipeline state: the current record
// snapshot and everything derived from it. Recomputation is an explicit
// trigger — on a new record batch the engine rebuilds the time series, fits
// both forecast models in parallel, arbitrates, and recomputes the
// governance indices, then publishes the whole result in one step. There are
// no timers here; scheduling belongs to the caller.
package engine

import (
	"log"
	"sync"
	"time"

	"drishti/internal/aggregate"
	"drishti/internal/arbiter"
	"drishti/internal/domain"
	"drishti/internal/forecast"
	"drishti/internal/governance"
)

// Options tune the pipeline.
type Options struct {
	// Windows is the walk-forward evaluation window count.
	Windows int
	// StabilityTolerance is the arbiter's relative tie tolerance.
	StabilityTolerance float64
	// PivotLimit is the top-K cutoff for pivot views.
	PivotLimit int
	// Seed keeps bootstrap sampling reproducible across refits.
	Seed int64
}

// Comparison is the joined view of both models and the arbiter's decision.
type Comparison struct {
	Results  [2]forecast.Result `json:"results"`
	Decision arbiter.Decision   `json:"decision"`
}

// Engine holds the published snapshot. Reads see either the previous or the
// next complete state, never a mix of stale and fresh results.
type Engine struct {
	opts Options

	mu       sync.RWMutex
	records  []domain.Record
	series   domain.TimeSeries
	evals    [2]*forecast.Evaluation
	modelErr error
	decision arbiter.Decision
	pending  error
	indices  []governance.Index
}

// New builds an empty engine.
func New(opts Options) *Engine {
	if opts.Windows <= 0 {
		opts.Windows = forecast.DefaultWindows
	}
	if opts.StabilityTolerance <= 0 {
		opts.StabilityTolerance = arbiter.DefaultTolerance
	}
	if opts.PivotLimit <= 0 {
		opts.PivotLimit = aggregate.DefaultPivotLimit
	}
	e := &Engine{opts: opts, pending: arbiter.ErrPending}
	e.indices = governance.Indices(nil)
	return e
}

// SetRecords replaces the record snapshot and recomputes every derived view.
func (e *Engine) SetRecords(records []domain.Record) {
	snapshot := make([]domain.Record, len(records))
	copy(snapshot, records)
	e.recompute(snapshot)
}

// Refresh recomputes all derived views from the current snapshot. Used by
// the scheduling layer to refit models on the cadence it chooses.
func (e *Engine) Refresh() {
	e.mu.RLock()
	snapshot := e.records
	e.mu.RUnlock()
	e.recompute(snapshot)
}

func (e *Engine) recompute(records []domain.Record) {
	started := time.Now()
	series := aggregate.BuildTimeSeries(records)

	// The model fits and the indices are independent pure functions over the
	// same immutable snapshot; run them in parallel.
	var wg sync.WaitGroup
	var evals [2]*forecast.Evaluation
	var errs [2]error
	for _, id := range forecast.ModelIDs {
		wg.Add(1)
		go func(id forecast.ModelID) {
			defer wg.Done()
			ev, err := forecast.Evaluate(id, series, e.opts.Windows, e.opts.Seed)
			if err != nil {
				errs[id] = err
				return
			}
			evals[id] = &ev
		}(id)
	}

	var indices []governance.Index
	wg.Add(1)
	go func() {
		defer wg.Done()
		indices = governance.Indices(records)
	}()

	// Join point: the arbiter only ever sees a complete pair.
	wg.Wait()

	var decision arbiter.Decision
	var pending, modelErr error
	if errs[0] != nil || errs[1] != nil {
		pending = arbiter.ErrPending
		if errs[0] != nil {
			modelErr = errs[0]
		} else {
			modelErr = errs[1]
		}
		log.Printf("engine recompute records=%d points=%d forecast not ready: %v", len(records), series.Len(), modelErr)
	} else {
		var err error
		decision, err = arbiter.Decide(evals[forecast.ModelRandomForest], evals[forecast.ModelXGBoost], e.opts.StabilityTolerance)
		if err != nil {
			pending = err
		} else {
			log.Printf("engine recompute records=%d points=%d default=%s took=%s",
				len(records), series.Len(), decision.Default, time.Since(started).Round(time.Millisecond))
		}
	}

	e.mu.Lock()
	e.records = records
	e.series = series
	e.evals = evals
	e.modelErr = modelErr
	e.decision = decision
	e.pending = pending
	e.indices = indices
	e.mu.Unlock()
}

// Records returns a copy of the current snapshot.
func (e *Engine) Records() []domain.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Record, len(e.records))
	copy(out, e.records)
	return out
}

// Series returns the current time series.
func (e *Engine) Series() domain.TimeSeries {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.series
}

// Pivot computes a ranked pivot view over the current snapshot.
func (e *Engine) Pivot(dim aggregate.Dimension, metric aggregate.Metric) []domain.PivotEntry {
	e.mu.RLock()
	records := e.records
	e.mu.RUnlock()
	return aggregate.Pivot(records, dim, metric, e.opts.PivotLimit)
}

// Demographics returns the age-band split over the current snapshot.
func (e *Engine) Demographics() domain.AgeSplit {
	e.mu.RLock()
	records := e.records
	e.mu.RUnlock()
	return aggregate.Demographics(records)
}

// Comparison returns both forecasts and the arbiter's decision, or the
// pending/not-ready error when either model is unavailable. Callers must
// distinguish this state from a zero forecast.
func (e *Engine) Comparison() (Comparison, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pending != nil {
		if e.modelErr != nil {
			return Comparison{}, e.modelErr
		}
		return Comparison{}, e.pending
	}
	return Comparison{
		Results: [2]forecast.Result{
			e.evals[forecast.ModelRandomForest].Result,
			e.evals[forecast.ModelXGBoost].Result,
		},
		Decision: e.decision,
	}, nil
}

// DefaultBriefingInput returns the selected model's output in briefing-request
// form, or the pending error when no decision is available.
func (e *Engine) DefaultBriefingInput(scopeLabel string) (model string, estimate, confidence float64, err error) {
	cmp, err := e.Comparison()
	if err != nil {
		return "", 0, 0, err
	}
	r := cmp.Results[cmp.Decision.Default]
	return r.Model.String(), r.Estimate, r.Confidence, nil
}

// Indices returns the governance index set for the current snapshot.
func (e *Engine) Indices() []governance.Index {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]governance.Index, len(e.indices))
	copy(out, e.indices)
	return out
}
