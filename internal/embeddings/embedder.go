package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch indicates vectors of differing lengths.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrEmbeddingFailed)

	// ErrMalformedVector indicates an empty vector or one holding NaN or Inf.
	ErrMalformedVector = fmt.Errorf("%w: malformed vector", ErrEmbeddingFailed)
)

// Embedder converts text into vectors.
type Embedder interface {
	// EmbedDocuments embeds a batch of texts. The result has one vector per text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known dimension and releasable resources.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// WrapFailure marks err as an embedding failure while keeping it matchable
// with errors.Is.
func WrapFailure(err error) error {
	if err == nil || errors.Is(err, ErrEmbeddingFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
}
