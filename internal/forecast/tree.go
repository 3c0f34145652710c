package forecast

import "sort"

// treeNode is one node of a regression tree. Leaves carry the mean target of
// the samples that reached them; internal nodes split on feature <= threshold.
type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (t *treeNode) predict(x featureRow) float64 {
	node := t
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

// growTree fits a regression tree on the samples indexed by idx, choosing at
// each node the split with the largest squared-error reduction. Nodes stop
// splitting at maxDepth or when either side would fall below minLeaf samples.
func growTree(X []featureRow, y []float64, idx []int, depth, maxDepth, minLeaf int) *treeNode {
	mean := meanAt(y, idx)
	if depth >= maxDepth || len(idx) < 2*minLeaf {
		return &treeNode{leaf: true, value: mean}
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	baseSSE := sseAt(y, idx, mean)

	for f := 0; f < len(X[0]); f++ {
		ordered := make([]int, len(idx))
		copy(ordered, idx)
		sort.Slice(ordered, func(a, b int) bool { return X[ordered[a]][f] < X[ordered[b]][f] })

		var leftSum, leftSq float64
		totalSum, totalSq := sumsAt(y, ordered)
		for i := 0; i < len(ordered)-1; i++ {
			v := y[ordered[i]]
			leftSum += v
			leftSq += v * v
			// No valid split between equal feature values.
			if X[ordered[i]][f] == X[ordered[i+1]][f] {
				continue
			}
			nl, nr := i+1, len(ordered)-i-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			gain := baseSSE - sse
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[ordered[i]][f] + X[ordered[i+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{leaf: true, value: mean}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      growTree(X, y, leftIdx, depth+1, maxDepth, minLeaf),
		right:     growTree(X, y, rightIdx, depth+1, maxDepth, minLeaf),
	}
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func sseAt(y []float64, idx []int, mean float64) float64 {
	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return sse
}

func sumsAt(y []float64, idx []int) (sum, sq float64) {
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	return sum, sq
}
