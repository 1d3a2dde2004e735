package retrieval

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/embeddings"
)

// CPUOptimizedRetriever scores all candidates with cosine similarity.
//
// Chunk vectors are computed once and cached on the chunk. The LRU bounds how
// many chunks hold a vector: evicting an entry clears that chunk's vector, and
// it is recomputed the next time the chunk is a candidate.
type CPUOptimizedRetriever struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
	tracer   trace.Tracer
	cache    *lru.Cache[string, *corpus.Chunk]
}

// NewCPUOptimizedRetriever creates an exhaustive retriever.
func NewCPUOptimizedRetriever(embedder embeddings.Embedder, opts ...Option) (*CPUOptimizedRetriever, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := lru.NewWithEvict(o.cacheSize, func(_ string, c *corpus.Chunk) {
		c.ClearEmbedding()
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	return &CPUOptimizedRetriever{
		embedder: embedder,
		logger:   o.logger,
		tracer:   otel.Tracer(tracerName),
		cache:    cache,
	}, nil
}

// Retrieve scores chunks against query.
func (r *CPUOptimizedRetriever) Retrieve(ctx context.Context, query string, chunks []*corpus.Chunk) ([]ScoredChunk, error) {
	if len(chunks) == 0 {
		return []ScoredChunk{}, nil
	}
	if blankQuery(query) {
		return unscored(chunks), nil
	}

	ctx, span := r.tracer.Start(ctx, "retrieval.cpu.retrieve",
		trace.WithAttributes(attribute.Int("candidates", len(chunks))))
	defer span.End()

	qvec, err := embedQuery(ctx, r.embedder, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return nil, err
	}

	// Vectors are read once into vecs; cache evictions during this call may
	// clear the slot on the chunk but never the local copy.
	vecs := make([][]float32, len(chunks))
	var missing []int
	for i, c := range chunks {
		if v := c.Embedding(); v != nil && len(v) == len(qvec) {
			vecs[i] = v
			// Vectors cached at ingestion join the LRU on first use.
			if _, ok := r.cache.Get(c.ID); !ok {
				r.cache.Add(c.ID, c)
			}
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		todo := make([]*corpus.Chunk, len(missing))
		for j, i := range missing {
			todo[j] = chunks[i]
		}
		computed, err := embedContents(ctx, r.embedder, todo, len(qvec))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "chunk embedding failed")
			return nil, err
		}
		for j, i := range missing {
			vecs[i] = computed[j]
			chunks[i].SetEmbedding(computed[j])
			r.cache.Add(chunks[i].ID, chunks[i])
		}
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: embeddings.CosineSimilarity(qvec, vecs[i])}
	}
	Rank(scored)

	span.SetAttributes(
		attribute.Int("embedded", len(missing)),
		attribute.Int("cached", len(chunks)-len(missing)),
	)
	r.logger.Debug("retrieved chunks",
		zap.Int("candidates", len(chunks)),
		zap.Int("embedded", len(missing)))

	return scored, nil
}

// EvictOldest releases the vectors of the least recently used fraction of
// cached chunks and returns how many were released.
func (r *CPUOptimizedRetriever) EvictOldest(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}
	n := int(math.Ceil(fraction * float64(r.cache.Len())))
	evicted := 0
	for ; evicted < n; evicted++ {
		if _, _, ok := r.cache.RemoveOldest(); !ok {
			break
		}
	}
	return evicted
}

// Forget drops cached vectors of the given chunks.
func (r *CPUOptimizedRetriever) Forget(ids []string) {
	for _, id := range ids {
		r.cache.Remove(id)
	}
}

// Cached returns the number of chunks currently holding a cached vector.
func (r *CPUOptimizedRetriever) Cached() int {
	return r.cache.Len()
}
