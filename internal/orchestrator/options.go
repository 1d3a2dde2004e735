package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/chunking"
	"github.com/fyrsmithlabs/contextpack/internal/compression"
	"github.com/fyrsmithlabs/contextpack/internal/memory"
	"github.com/fyrsmithlabs/contextpack/internal/retrieval"
	"github.com/fyrsmithlabs/contextpack/internal/secrets"
)

// Option configures a ContextManager.
type Option func(*ContextManager)

// WithChunker sets the chunking strategy.
func WithChunker(c chunking.Chunker) Option {
	return func(m *ContextManager) { m.chunker = c }
}

// WithCompressor sets the deduplicator used when dedup is enabled.
func WithCompressor(d compression.Deduplicator) Option {
	return func(m *ContextManager) { m.compressor = d }
}

// WithRetriever sets the ranking strategy.
func WithRetriever(r retrieval.Retriever) Option {
	return func(m *ContextManager) { m.retriever = r }
}

// WithGovernor sets the memory governor. Defaults to memory.NoopGovernor.
func WithGovernor(g memory.Governor) Option {
	return func(m *ContextManager) {
		if g != nil {
			m.governor = g
		}
	}
}

// WithScrubber redacts secrets from documents before chunking.
func WithScrubber(s secrets.Scrubber) Option {
	return func(m *ContextManager) { m.scrubber = s }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *ContextManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// QueryOption adjusts a single GenerateContext call.
type QueryOption func(*queryOptions) error

type queryOptions struct {
	maxContextSize int
}

// WithMaxContextSize overrides the configured budget for one call.
func WithMaxContextSize(n int) QueryOption {
	return func(o *queryOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: max context size must be positive, got %d", ErrInvalidConfig, n)
		}
		o.maxContextSize = n
		return nil
	}
}
