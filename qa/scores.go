package qa

import (
	"math"
	"sort"
)

// TopKIndexes returns the indices of the k largest scores in descending
// score order; equal scores keep ascending index order. k is clamped to
// len(scores).
func TopKIndexes(scores []float64, k int) []int {
	indexes := make([]int, len(scores))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return scores[indexes[a]] > scores[indexes[b]]
	})
	if k > len(indexes) {
		k = len(indexes)
	}
	return indexes[:k]
}

// Softmax computes softmax probabilities over raw scores. The maximum score
// is subtracted before exponentiating for numerical stability. Returns nil
// for empty input.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := scores[0]
	for _, score := range scores[1:] {
		if score > maxScore {
			maxScore = score
		}
	}
	probs := make([]float64, len(scores))
	totalSum := 0.0
	for i, score := range scores {
		probs[i] = math.Exp(score - maxScore)
		totalSum += probs[i]
	}
	for i := range probs {
		probs[i] /= totalSum
	}
	return probs
}
