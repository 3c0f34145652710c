// Package arbiter designates one of the two forecasting models as the
// dashboard default. The rule is risk-averse: the model whose walk-forward
// estimates vary less wins, even when its mean error is worse. Accuracy only
// breaks ties when the stability scores are within a relative tolerance.
package arbiter

import (
	"errors"
	"fmt"
	"math"

	"drishti/internal/forecast"
)

// DefaultTolerance is the relative stability difference below which the two
// models are treated as equally stable.
const DefaultTolerance = 0.01

// ErrPending reports that a decision cannot be made because one or both
// forecast evaluations are unavailable. A decision is never produced from a
// partial pair.
var ErrPending = errors.New("arbiter pending: both forecast evaluations required")

// ModelReport records one model's comparison inputs, kept on the decision so
// any "why X and not Y" question can be answered from the decision alone.
type ModelReport struct {
	Model      forecast.ModelID `json:"model"`
	Estimate   float64          `json:"estimate"`
	Confidence float64          `json:"confidence"`
	Stability  float64          `json:"stability"`
	MAE        float64          `json:"mae"`
}

// Decision names the default model and carries the full comparison audit.
type Decision struct {
	Default   forecast.ModelID `json:"default_model"`
	Reports   [2]ModelReport   `json:"reports"` // canonical order: random_forest, xgboost
	Rationale string           `json:"rationale"`
}

// Decide compares two complete evaluations and picks the default model.
// Both evaluations must be present and belong to different models.
func Decide(forest, boost *forecast.Evaluation, tolerance float64) (Decision, error) {
	if forest == nil || boost == nil {
		return Decision{}, ErrPending
	}
	if forest.Result.Model == boost.Result.Model {
		return Decision{}, fmt.Errorf("arbiter: evaluations must come from distinct models, both are %s", forest.Result.Model)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	a := report(forest)
	b := report(boost)
	d := Decision{Reports: [2]ModelReport{a, b}}

	rel := relativeDiff(a.Stability, b.Stability)
	if rel > tolerance {
		winner := a
		if b.Stability < a.Stability {
			winner = b
		}
		d.Default = winner.Model
		d.Rationale = fmt.Sprintf(
			"stability %s=%.4f %s=%.4f (relative diff %.2f%% exceeds %.2f%% tolerance): %s varies less across evaluation windows",
			a.Model, a.Stability, b.Model, b.Stability, rel*100, tolerance*100, winner.Model)
		return d, nil
	}

	// Statistically indistinguishable stability: accuracy breaks the tie.
	winner := a
	if b.MAE < a.MAE {
		winner = b
	}
	d.Default = winner.Model
	d.Rationale = fmt.Sprintf(
		"stability %s=%.4f %s=%.4f within %.2f%% tolerance; tie broken by accuracy (mae %s=%.4f %s=%.4f): %s",
		a.Model, a.Stability, b.Model, b.Stability, tolerance*100, a.Model, a.MAE, b.Model, b.MAE, winner.Model)
	return d, nil
}

func report(ev *forecast.Evaluation) ModelReport {
	return ModelReport{
		Model:      ev.Result.Model,
		Estimate:   ev.Result.Estimate,
		Confidence: ev.Result.Confidence,
		Stability:  ev.Stability,
		MAE:        ev.MAE,
	}
}

func relativeDiff(x, y float64) float64 {
	max := math.Max(x, y)
	if max == 0 {
		return 0
	}
	return math.Abs(x-y) / max
}
