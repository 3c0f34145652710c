package forecast

import (
	"errors"
	"math"

	"drishti/internal/domain"
)

// ErrInsufficientHistory reports that the series is too short to both fit a
// model and evaluate it. Callers must surface this as a distinct not-ready
// state, never as a zero forecast.
var ErrInsufficientHistory = errors.New("insufficient history for forecast")

// DefaultWindows is the walk-forward evaluation window count.
const DefaultWindows = 5

// Evaluation is one model's forecast together with the walk-forward evidence
// the arbiter compares: per-window estimates, their variance (stability),
// and the mean absolute error.
type Evaluation struct {
	Result    Result
	Estimates []float64
	AbsErrors []float64
	Stability float64
	MAE       float64
}

// Evaluate runs walk-forward validation for the given model: for each of the
// trailing windows it refits on the preceding points only and forecasts the
// held-out point, then refits on the full series for the published estimate.
// Confidence is 1/(1+NMAE), the same normalization for both models.
func Evaluate(id ModelID, ts domain.TimeSeries, windows int, seed int64) (Evaluation, error) {
	if windows <= 0 {
		windows = DefaultWindows
	}
	n := ts.Len()
	// At least two held-out windows are needed for an estimate variance.
	if n < MinHistory+2 {
		return Evaluation{}, ErrInsufficientHistory
	}
	if windows > n-MinHistory {
		windows = n - MinHistory
	}

	ev := Evaluation{
		Estimates: make([]float64, 0, windows),
		AbsErrors: make([]float64, 0, windows),
	}

	var actualSum float64
	for w := 0; w < windows; w++ {
		cut := n - windows + w
		part := truncated(ts, cut)
		X, y := trainingSet(part)
		model := fit(id, X, y, seed)
		est := clampNonNegative(model.predict(nextFeatures(part)))
		actual := float64(ts.Points[cut].Updates)

		ev.Estimates = append(ev.Estimates, est)
		ev.AbsErrors = append(ev.AbsErrors, math.Abs(est-actual))
		actualSum += actual
	}

	ev.MAE = mean(ev.AbsErrors)
	ev.Stability = variance(ev.Estimates)

	meanActual := actualSum / float64(windows)
	nmae := 0.0
	if meanActual > 0 {
		nmae = ev.MAE / meanActual
	}
	confidence := 1 / (1 + nmae)

	X, y := trainingSet(ts)
	model := fit(id, X, y, seed)
	ev.Result = Result{
		Model:      id,
		Estimate:   clampNonNegative(model.predict(nextFeatures(ts))),
		Confidence: clamp01(confidence),
	}
	return ev, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the population variance; lower means a more stable model.
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func clampNonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
