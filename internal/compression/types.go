package compression

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
)

// DefaultThreshold is the similarity at or above which units are merged.
const DefaultThreshold = 0.85

var (
	// ErrInvalidThreshold indicates a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

	// ErrNilEmbedder indicates a deduplicator constructed without an embedder.
	ErrNilEmbedder = errors.New("embedder is required")
)

// Deduplicator collapses near-duplicate units.
type Deduplicator interface {
	// Compress returns the surviving units as an order-preserving subsequence.
	Compress(ctx context.Context, units []string) ([]string, error)

	// CompressChunks applies the same algorithm to chunk contents. Survivors
	// keep their original positions.
	CompressChunks(ctx context.Context, chunks []*corpus.Chunk) ([]*corpus.Chunk, error)
}

// Stats describes one deduplication run.
type Stats struct {
	Total int
	Kept  int
	// Ratio is Kept/Total, 1 for empty input.
	Ratio float64
}

// Removed returns the number of discarded units.
func (s Stats) Removed() int {
	return s.Total - s.Kept
}

func newStats(total, kept int) Stats {
	s := Stats{Total: total, Kept: kept, Ratio: 1}
	if total > 0 {
		s.Ratio = float64(kept) / float64(total)
	}
	return s
}
