package retrieval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/embeddings"
)

const tracerName = "github.com/fyrsmithlabs/contextpack/internal/retrieval"

// DefaultCacheSize is the number of chunk embeddings kept by default.
const DefaultCacheSize = 10000

var (
	// ErrNilEmbedder indicates a retriever constructed without an embedder.
	ErrNilEmbedder = errors.New("embedder is required")

	// ErrUnknownKind indicates an unsupported retriever kind.
	ErrUnknownKind = errors.New("unknown retriever kind")
)

// ScoredChunk is a chunk with its relevance score.
type ScoredChunk struct {
	Chunk *corpus.Chunk
	Score float64
}

// Retriever ranks candidate chunks against a query.
type Retriever interface {
	// Retrieve returns every candidate with its score, best first. An empty
	// query scores all candidates 0 and returns them in document order.
	Retrieve(ctx context.Context, query string, chunks []*corpus.Chunk) ([]ScoredChunk, error)
}

// Forgetter is implemented by retrievers that hold per-chunk state.
type Forgetter interface {
	// Forget drops state kept for the given chunk ids.
	Forget(ids []string)
}

// Rank sorts scored in place: score descending, then document insertion
// order, position and chunk id ascending.
func Rank(scored []ScoredChunk) {
	slices.SortStableFunc(scored, func(a, b ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if corpus.Less(a.Chunk, b.Chunk) {
			return -1
		}
		if corpus.Less(b.Chunk, a.Chunk) {
			return 1
		}
		return 0
	})
}

// unscored returns chunks with zero scores in document order.
func unscored(chunks []*corpus.Chunk) []ScoredChunk {
	out := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = ScoredChunk{Chunk: c}
	}
	Rank(out)
	return out
}

func blankQuery(query string) bool {
	return strings.TrimSpace(query) == ""
}

// embedQuery embeds and validates the query vector.
func embedQuery(ctx context.Context, e embeddings.Embedder, query string) ([]float32, error) {
	qvec, err := e.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", embeddings.WrapFailure(err))
	}
	if err := embeddings.ValidateVector(qvec, 0); err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return qvec, nil
}

// embedContents embeds chunk contents in one batch and checks every vector
// against the query dimension.
func embedContents(ctx context.Context, e embeddings.Embedder, chunks []*corpus.Chunk, dim int) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", embeddings.WrapFailure(err))
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding chunks: %w: got %d vectors for %d chunks", embeddings.ErrEmbeddingFailed, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if err := embeddings.ValidateVector(v, dim); err != nil {
			return nil, fmt.Errorf("embedding chunk %s: %w", chunks[i].ID, err)
		}
	}
	return vecs, nil
}

// Option configures a retriever.
type Option func(*options)

type options struct {
	cacheSize int
	logger    *zap.Logger
}

func defaultOptions() options {
	return options{cacheSize: DefaultCacheSize, logger: zap.NewNop()}
}

// WithCacheSize sets the number of chunk embeddings kept in memory.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a retriever by kind: "cpu" (default) or "indexed".
func New(kind string, embedder embeddings.Embedder, opts ...Option) (Retriever, error) {
	switch kind {
	case "cpu", "":
		return NewCPUOptimizedRetriever(embedder, opts...)
	case "indexed":
		return NewIndexedRetriever(embedder, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
