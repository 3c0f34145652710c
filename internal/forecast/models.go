// Package forecast trains two independently parameterized tree-ensemble
// regressors over the aggregated update series and evaluates them under
// walk-forward validation. The two model identities are a closed enumeration;
// each is bound to its own fit function, so there is no string-keyed lookup
// to mistype.
package forecast

import "math/rand"

// ModelID identifies one of the two forecasting models.
type ModelID int

const (
	// ModelRandomForest is the bagged-tree ensemble.
	ModelRandomForest ModelID = iota
	// ModelXGBoost is the boosted-tree ensemble.
	ModelXGBoost
)

// ModelIDs lists both model identities in canonical order.
var ModelIDs = [2]ModelID{ModelRandomForest, ModelXGBoost}

func (m ModelID) String() string {
	if m == ModelXGBoost {
		return "xgboost"
	}
	return "random_forest"
}

// MinHistory is the fewest series points either model will fit on.
const MinHistory = 3

// Result is one point forecast with its normalized confidence.
type Result struct {
	Model      ModelID `json:"model"`
	Estimate   float64 `json:"estimate"`
	Confidence float64 `json:"confidence"`
}

type predictor interface {
	predict(x featureRow) float64
}

// fit trains the ensemble bound to the given model identity. The seed keeps
// bootstrap sampling reproducible across refits on the same data.
func fit(id ModelID, X []featureRow, y []float64, seed int64) predictor {
	if id == ModelXGBoost {
		return fitBoosted(X, y)
	}
	return fitForest(X, y, seed)
}

// --- Bagged forest ---

const (
	forestTrees    = 30
	forestMaxDepth = 3
	forestMinLeaf  = 2
)

type baggedForest struct {
	trees []*treeNode
}

func fitForest(X []featureRow, y []float64, seed int64) *baggedForest {
	rng := rand.New(rand.NewSource(seed))
	forest := &baggedForest{trees: make([]*treeNode, 0, forestTrees)}
	for t := 0; t < forestTrees; t++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		forest.trees = append(forest.trees, growTree(X, y, idx, 0, forestMaxDepth, forestMinLeaf))
	}
	return forest
}

func (f *baggedForest) predict(x featureRow) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

// --- Boosted ensemble ---

const (
	boostRounds    = 40
	boostShrinkage = 0.1
	boostMaxDepth  = 2
	boostMinLeaf   = 1
)

type boostedEnsemble struct {
	base  float64
	trees []*treeNode
}

func fitBoosted(X []featureRow, y []float64) *boostedEnsemble {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	base := meanAt(y, idx)
	residuals := make([]float64, len(y))
	for i, v := range y {
		residuals[i] = v - base
	}

	ens := &boostedEnsemble{base: base, trees: make([]*treeNode, 0, boostRounds)}
	for r := 0; r < boostRounds; r++ {
		tree := growTree(X, residuals, idx, 0, boostMaxDepth, boostMinLeaf)
		ens.trees = append(ens.trees, tree)
		for i := range residuals {
			residuals[i] -= boostShrinkage * tree.predict(X[i])
		}
	}
	return ens
}

func (e *boostedEnsemble) predict(x featureRow) float64 {
	out := e.base
	for _, t := range e.trees {
		out += boostShrinkage * t.predict(x)
	}
	return out
}
