package orchestrator

import (
	"errors"
	"fmt"
	"math"
)

// Dedup granularities.
const (
	GranularityChunk    = "chunk"
	GranularitySentence = "sentence"
)

// DefaultSeparator joins accepted chunks.
const DefaultSeparator = "\n\n"

// ErrInvalidConfig indicates an unusable ContextManager configuration or
// query option.
var ErrInvalidConfig = errors.New("invalid context manager configuration")

// Config holds ContextManager settings.
type Config struct {
	// MaxContextSize is the default token budget per query.
	MaxContextSize int

	DedupEnabled bool
	// DedupGranularity selects whole-chunk or sentence-level dedup.
	DedupGranularity string

	// IngestConcurrency bounds parallel document preparation in AddDocuments.
	IngestConcurrency int

	// EvictChunks tombstones least recently selected chunks while the
	// governor throttles.
	EvictChunks bool
	// EvictFraction is the share of live chunks evicted per throttled query.
	EvictFraction float64

	Separator string
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		MaxContextSize:    4096,
		DedupEnabled:      true,
		DedupGranularity:  GranularityChunk,
		IngestConcurrency: 4,
		EvictFraction:     0.1,
		Separator:         DefaultSeparator,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxContextSize <= 0 {
		return fmt.Errorf("%w: max context size must be positive, got %d", ErrInvalidConfig, c.MaxContextSize)
	}
	switch c.DedupGranularity {
	case "", GranularityChunk, GranularitySentence:
	default:
		return fmt.Errorf("%w: unknown dedup granularity %q", ErrInvalidConfig, c.DedupGranularity)
	}
	if c.IngestConcurrency < 0 {
		return fmt.Errorf("%w: ingest concurrency must be >= 0", ErrInvalidConfig)
	}
	if math.IsNaN(c.EvictFraction) || c.EvictFraction < 0 || c.EvictFraction > 1 {
		return fmt.Errorf("%w: evict fraction must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DedupGranularity == "" {
		c.DedupGranularity = GranularityChunk
	}
	if c.IngestConcurrency == 0 {
		c.IngestConcurrency = 1
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
}
