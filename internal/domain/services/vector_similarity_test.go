package services

import (
	"math"
	"math/rand"
	"testing"

	appErrors "ideagraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 2, 3}, []float64{-1, -2, -3}, -1},
		{"scaled", []float64{1, 2}, []float64{2, 4}, 1},
		{"zero vector left", []float64{0, 0, 0}, []float64{1, 2, 3}, 0},
		{"zero vector right", []float64{1, 2, 3}, []float64{0, 0, 0}, 0},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestCosineSimilarityValidation(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float64
		wantErr string
	}{
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, "same length"},
		{"empty", []float64{}, []float64{}, "cannot be empty"},
		{"nil", nil, nil, "cannot be empty"},
		{"non-finite", []float64{math.Inf(1), 1}, []float64{1, 1}, "non-finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CosineSimilarity(tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCosineSimilarityProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	randomVector := func(dim int) []float64 {
		v := make([]float64, dim)
		for i := range v {
			v[i] = rng.NormFloat64() * math.Pow(10, float64(rng.Intn(7)-3))
		}
		return v
	}

	for iter := 0; iter < 500; iter++ {
		dim := 1 + rng.Intn(64)
		a := randomVector(dim)
		b := randomVector(dim)

		ab, err := CosineSimilarity(a, b)
		require.NoError(t, err)
		ba, err := CosineSimilarity(b, a)
		require.NoError(t, err)

		assert.Equal(t, ab, ba, "symmetry must hold exactly")
		assert.GreaterOrEqual(t, ab, -1.0)
		assert.LessOrEqual(t, ab, 1.0)

		self, err := CosineSimilarity(a, a)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, self, 1e-9)
	}
}
