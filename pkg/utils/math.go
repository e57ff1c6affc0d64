package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm, so that inner
// product between two normalized vectors equals their cosine similarity.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}
