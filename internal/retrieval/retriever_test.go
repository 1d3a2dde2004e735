package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/embeddings"
)

// countingEmbedder wraps an embedder and counts calls.
type countingEmbedder struct {
	embeddings.Embedder
	docCalls   atomic.Int32
	docTexts   atomic.Int32
	queryCalls atomic.Int32
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{Embedder: embeddings.NewHashProvider(0)}
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.docCalls.Add(1)
	c.docTexts.Add(int32(len(texts)))
	return c.Embedder.EmbedDocuments(ctx, texts)
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.queryCalls.Add(1)
	return c.Embedder.EmbedQuery(ctx, text)
}

// brokenEmbedder returns query vectors of one dimension and document vectors
// of another, or a fixed error.
type brokenEmbedder struct {
	err error
}

func (b brokenEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (b brokenEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []float32{1, 0}, nil
}

func energyChunks() []*corpus.Chunk {
	texts := []struct {
		doc     string
		seq     uint64
		pos     int
		content string
	}{
		{"a", 0, 0, "Solar panels convert sunlight into electricity."},
		{"a", 0, 1, "Wind turbines generate power from moving air."},
		{"b", 1, 0, "Solar energy and wind energy are renewable."},
		{"b", 1, 1, "The stock market closed higher today."},
	}
	out := make([]*corpus.Chunk, len(texts))
	for i, tt := range texts {
		c := corpus.NewChunk(tt.doc, tt.content, tt.pos)
		c.DocumentSeq = tt.seq
		out[i] = c
	}
	return out
}

func ids(scored []ScoredChunk) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Chunk.ID
	}
	return out
}

func retrievers(t *testing.T, emb embeddings.Embedder) map[string]Retriever {
	t.Helper()
	out := map[string]Retriever{}
	for _, kind := range []string{"cpu", "indexed"} {
		r, err := New(kind, emb)
		require.NoError(t, err)
		out[kind] = r
	}
	return out
}

func TestRetrievers_Ranking(t *testing.T) {
	for kind, r := range retrievers(t, embeddings.NewHashProvider(0)) {
		t.Run(kind, func(t *testing.T) {
			scored, err := r.Retrieve(context.Background(), "solar energy", energyChunks())
			require.NoError(t, err)
			require.Len(t, scored, 4)

			assert.Equal(t, []string{"b#0", "a#0", "a#1", "b#1"}, ids(scored))
			assert.InDelta(t, 0.7071, scored[0].Score, 1e-3)
			assert.InDelta(t, 0.2887, scored[1].Score, 1e-3)
			assert.InDelta(t, 0, scored[2].Score, 1e-6)

			again, err := r.Retrieve(context.Background(), "solar energy", energyChunks())
			require.NoError(t, err)
			assert.Equal(t, ids(scored), ids(again), "ranking is deterministic")
		})
	}
}

func TestRetrievers_EmptyInputs(t *testing.T) {
	emb := newCountingEmbedder()
	for kind, r := range retrievers(t, emb) {
		t.Run(kind, func(t *testing.T) {
			scored, err := r.Retrieve(context.Background(), "solar", nil)
			require.NoError(t, err)
			assert.Empty(t, scored)

			chunks := energyChunks()
			scored, err = r.Retrieve(context.Background(), "  ", []*corpus.Chunk{chunks[3], chunks[1], chunks[2], chunks[0]})
			require.NoError(t, err)
			assert.Equal(t, []string{"a#0", "a#1", "b#0", "b#1"}, ids(scored), "blank query keeps document order")
			for _, s := range scored {
				assert.Zero(t, s.Score)
			}
		})
	}
	assert.Zero(t, emb.docCalls.Load())
	assert.Zero(t, emb.queryCalls.Load())
}

func TestRetrievers_EmbeddingFailures(t *testing.T) {
	tests := []struct {
		name    string
		emb     embeddings.Embedder
		wantErr error
	}{
		{name: "provider error", emb: brokenEmbedder{err: errors.New("service unavailable")}, wantErr: embeddings.ErrEmbeddingFailed},
		{name: "dimension mismatch", emb: brokenEmbedder{}, wantErr: embeddings.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		for kind, r := range retrievers(t, tt.emb) {
			t.Run(tt.name+"/"+kind, func(t *testing.T) {
				_, err := r.Retrieve(context.Background(), "solar", energyChunks())
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, embeddings.ErrEmbeddingFailed)
			})
		}
	}
}

func TestRank_TotalOrder(t *testing.T) {
	mk := func(doc string, seq uint64, pos int) *corpus.Chunk {
		c := corpus.NewChunk(doc, "x", pos)
		c.DocumentSeq = seq
		return c
	}
	scored := []ScoredChunk{
		{Chunk: mk("b", 1, 0), Score: 0.5},
		{Chunk: mk("a", 0, 2), Score: 0.5},
		{Chunk: mk("a", 0, 1), Score: 0.5},
		{Chunk: mk("c", 2, 0), Score: 0.9},
		{Chunk: mk("d", 3, 0), Score: 0.1},
	}
	Rank(scored)
	assert.Equal(t, []string{"c#0", "a#1", "a#2", "b#0", "d#0"}, ids(scored))
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("bm25", embeddings.NewHashProvider(0))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New("cpu", nil)
	assert.ErrorIs(t, err, ErrNilEmbedder)

	_, err = New("indexed", nil)
	assert.ErrorIs(t, err, ErrNilEmbedder)
}
