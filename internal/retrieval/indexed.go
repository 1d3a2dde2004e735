package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/embeddings"
)

const collectionName = "chunks"

// IndexedRetriever keeps chunk vectors in an in-memory chromem-go collection.
// Chunks are indexed the first time they are candidates; queries run against
// the collection and are restricted to the requested candidates. A vector
// already cached on the chunk is indexed as is.
//
// Under memory pressure EvictOldest drops the chunks that were least recently
// candidates; they are indexed again the next time they are.
type IndexedRetriever struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
	tracer   trace.Tracer

	mu         sync.Mutex // serializes index mutation and queries
	db         *chromem.DB
	collection *chromem.Collection
	indexed    map[string]uint64 // chunk id -> query tick it was last a candidate
	tick       uint64
	dimension  int
}

// NewIndexedRetriever creates a retriever backed by a chromem-go collection.
func NewIndexedRetriever(embedder embeddings.Embedder, opts ...Option) (*IndexedRetriever, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db := chromem.NewDB()
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	return &IndexedRetriever{
		embedder:   embedder,
		logger:     o.logger,
		tracer:     otel.Tracer(tracerName),
		db:         db,
		collection: collection,
		indexed:    make(map[string]uint64),
	}, nil
}

// Retrieve scores chunks against query using the collection.
func (r *IndexedRetriever) Retrieve(ctx context.Context, query string, chunks []*corpus.Chunk) ([]ScoredChunk, error) {
	if len(chunks) == 0 {
		return []ScoredChunk{}, nil
	}
	if blankQuery(query) {
		return unscored(chunks), nil
	}

	ctx, span := r.tracer.Start(ctx, "retrieval.indexed.retrieve",
		trace.WithAttributes(attribute.Int("candidates", len(chunks))))
	defer span.End()

	qvec, err := embedQuery(ctx, r.embedder, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dimension != 0 && len(qvec) != r.dimension {
		err := fmt.Errorf("embedding query: %w: got %d, index holds %d", embeddings.ErrDimensionMismatch, len(qvec), r.dimension)
		span.RecordError(err)
		return nil, err
	}

	added, err := r.index(ctx, chunks, len(qvec))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "indexing failed")
		return nil, err
	}
	r.tick++
	for _, c := range chunks {
		r.indexed[c.ID] = r.tick
	}

	results, err := r.collection.QueryEmbedding(ctx, qvec, r.collection.Count(), nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("querying index: %w", err)
	}

	byID := make(map[string]*corpus.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	scored := make([]ScoredChunk, 0, len(chunks))
	for _, res := range results {
		c, ok := byID[res.ID]
		if !ok {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Score: float64(res.Similarity)})
		delete(byID, res.ID)
	}
	// Unmatched candidates keep a zero score.
	for _, c := range byID {
		scored = append(scored, ScoredChunk{Chunk: c})
	}
	Rank(scored)

	span.SetAttributes(attribute.Int("indexed", added))
	r.logger.Debug("retrieved chunks from index",
		zap.Int("candidates", len(chunks)),
		zap.Int("indexed", added),
		zap.Int("collection_size", r.collection.Count()))

	return scored, nil
}

// index adds chunks not yet in the collection. Caller holds r.mu.
func (r *IndexedRetriever) index(ctx context.Context, chunks []*corpus.Chunk, dim int) (int, error) {
	var todo []*corpus.Chunk
	seen := make(map[string]struct{})
	for _, c := range chunks {
		if _, ok := r.indexed[c.ID]; ok {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		todo = append(todo, c)
	}
	if len(todo) == 0 {
		return 0, nil
	}

	vecs := make([][]float32, len(todo))
	var missing []*corpus.Chunk
	var slots []int
	for i, c := range todo {
		if v := c.Embedding(); len(v) == dim {
			vecs[i] = v
			continue
		}
		missing = append(missing, c)
		slots = append(slots, i)
	}
	if len(missing) > 0 {
		computed, err := embedContents(ctx, r.embedder, missing, dim)
		if err != nil {
			return 0, err
		}
		for j, i := range slots {
			vecs[i] = computed[j]
		}
	}

	docs := make([]chromem.Document, len(todo))
	for i, c := range todo {
		docs[i] = chromem.Document{
			ID: c.ID,
			Metadata: map[string]string{
				"document_id": c.DocumentID,
				"position":    strconv.Itoa(c.Position),
			},
			Embedding: vecs[i],
			Content:   c.Content,
		}
	}
	if err := r.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("indexing chunks: %w", err)
	}

	for _, c := range todo {
		r.indexed[c.ID] = r.tick
	}
	r.dimension = dim
	return len(todo), nil
}

// Forget removes chunks from the index.
func (r *IndexedRetriever) Forget(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(ids)
}

// EvictOldest removes the least recently queried fraction of indexed chunks
// and returns how many were removed. Ties go to the smaller chunk id.
func (r *IndexedRetriever) EvictOldest(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := int(math.Ceil(fraction * float64(len(r.indexed))))
	if n == 0 {
		return 0
	}
	ids := make([]string, 0, len(r.indexed))
	for id := range r.indexed {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(r.indexed[a], r.indexed[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return r.remove(ids[:n])
}

// remove deletes ids from the collection. Caller holds r.mu.
func (r *IndexedRetriever) remove(ids []string) int {
	var present []string
	for _, id := range ids {
		if _, ok := r.indexed[id]; ok {
			present = append(present, id)
			delete(r.indexed, id)
		}
	}
	if len(present) == 0 {
		return 0
	}
	if err := r.collection.Delete(context.Background(), nil, nil, present...); err != nil {
		r.logger.Warn("failed to remove chunks from index", zap.Int("count", len(present)), zap.Error(err))
	}
	if len(r.indexed) == 0 {
		r.dimension = 0
	}
	return len(present)
}

// Len returns the number of indexed chunks.
func (r *IndexedRetriever) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.indexed)
}
