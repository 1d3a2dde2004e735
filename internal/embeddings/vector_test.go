package embeddings

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "scaled", a: []float32{1, 2, 3}, b: []float32{2, 4, 6}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestValidateVector(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name    string
		vec     []float32
		dim     int
		wantErr error
	}{
		{name: "valid", vec: []float32{0.1, 0.2}, dim: 2},
		{name: "any dimension", vec: []float32{0.1, 0.2, 0.3}, dim: 0},
		{name: "empty", vec: nil, wantErr: ErrMalformedVector},
		{name: "nan", vec: []float32{0.1, nan}, wantErr: ErrMalformedVector},
		{name: "inf", vec: []float32{inf}, wantErr: ErrMalformedVector},
		{name: "wrong dimension", vec: []float32{0.1}, dim: 2, wantErr: ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(tt.vec, tt.dim)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.True(t, errors.Is(err, ErrEmbeddingFailed), "vector errors are embedding failures")
		})
	}
}

func TestValidateVectors(t *testing.T) {
	dim, err := ValidateVectors([][]float32{{1, 0}, {0, 1}}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	_, err = ValidateVectors([][]float32{{1, 0}}, 2)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	_, err = ValidateVectors([][]float32{{1, 0}, {0, 1, 0}}, 2)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
