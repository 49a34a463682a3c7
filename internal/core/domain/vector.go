package domain

import "math"

// CosineSimilarity computes dot(a,b) / (|a|*|b|).
// Returns 0 when either vector has zero norm, never NaN.
// Returns ErrDimensionMismatch when the lengths differ.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}

	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0, nil
	}
	return dot / denom, nil
}
