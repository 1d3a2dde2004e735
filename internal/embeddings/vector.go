package embeddings

import (
	"fmt"
	"math"
)

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns 0 for vectors of different lengths or zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ValidateVector checks that vec is non-empty, finite and, when dim > 0, of
// length dim.
func ValidateVector(vec []float32, dim int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedVector)
	}
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dim)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrMalformedVector, i)
		}
	}
	return nil
}

// ValidateVectors checks a batch returned for want texts. All vectors must be
// valid and share one length. Returns that length.
func ValidateVectors(vecs [][]float32, want int) (int, error) {
	if len(vecs) != want {
		return 0, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), want)
	}
	dim := 0
	for i, v := range vecs {
		if err := ValidateVector(v, dim); err != nil {
			return 0, fmt.Errorf("vector %d: %w", i, err)
		}
		dim = len(v)
	}
	return dim, nil
}

// Normalize scales vec in place to unit length. Zero vectors are left as is.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
}
