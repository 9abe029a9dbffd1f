package services

import (
	"math"

	appErrors "ideagraph-backend/pkg/errors"
)

// CosineSimilarity returns dot(a,b) / (‖a‖·‖b‖) clamped to [-1, 1].
//
// Both vectors must be non-empty and of equal length. A zero-norm vector has
// similarity 0 with everything. Every accumulation walks the indices in the
// same order whichever argument comes first, so the result is exactly
// symmetric.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, appErrors.NewValidationf("vectors must have the same length (got %d and %d)", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, appErrors.NewValidation("vectors cannot be empty")
	}

	var dot, sumA, sumB float64
	for i := range a {
		dot += a[i] * b[i]
		sumA += a[i] * a[i]
		sumB += b[i] * b[i]
	}

	normA := math.Sqrt(sumA)
	normB := math.Sqrt(sumB)
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	similarity := dot / (normA * normB)
	if math.IsNaN(similarity) {
		return 0, appErrors.NewValidation("vectors contain non-finite values")
	}
	return clamp(similarity, -1, 1), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
