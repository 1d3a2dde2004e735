package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
)

func TestIndexedRetriever_IndexesOnce(t *testing.T) {
	emb := newCountingEmbedder()
	r, err := NewIndexedRetriever(emb)
	require.NoError(t, err)

	chunks := energyChunks()
	_, err = r.Retrieve(context.Background(), "solar", chunks)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())

	_, err = r.Retrieve(context.Background(), "wind", chunks[:2])
	require.NoError(t, err)
	assert.Equal(t, int32(1), emb.docCalls.Load())
}

func TestIndexedRetriever_RestrictsToCandidates(t *testing.T) {
	r, err := NewIndexedRetriever(newCountingEmbedder())
	require.NoError(t, err)

	chunks := energyChunks()
	_, err = r.Retrieve(context.Background(), "solar", chunks)
	require.NoError(t, err)

	scored, err := r.Retrieve(context.Background(), "wind power", []*corpus.Chunk{chunks[0], chunks[2]})
	require.NoError(t, err)
	assert.Equal(t, []string{"b#0", "a#0"}, ids(scored))
}

func TestIndexedRetriever_Forget(t *testing.T) {
	emb := newCountingEmbedder()
	r, err := NewIndexedRetriever(emb)
	require.NoError(t, err)

	chunks := energyChunks()
	_, err = r.Retrieve(context.Background(), "solar", chunks)
	require.NoError(t, err)

	r.Forget([]string{chunks[1].ID, chunks[3].ID, "missing"})
	assert.Equal(t, 2, r.Len())

	scored, err := r.Retrieve(context.Background(), "solar energy", []*corpus.Chunk{chunks[0], chunks[2]})
	require.NoError(t, err)
	assert.Equal(t, []string{"b#0", "a#0"}, ids(scored))

	_, err = r.Retrieve(context.Background(), "solar", chunks)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len(), "forgotten chunks are re-indexed when they are candidates again")
	assert.Equal(t, int32(6), emb.docTexts.Load())
}

func TestIndexedRetriever_ReusesIngestedVectors(t *testing.T) {
	emb := newCountingEmbedder()
	r, err := NewIndexedRetriever(emb)
	require.NoError(t, err)

	chunks := energyChunks()
	preEmbed(t, chunks)

	scored, err := r.Retrieve(context.Background(), "solar energy", chunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"b#0", "a#0", "a#1", "b#1"}, ids(scored))
	assert.Equal(t, int32(0), emb.docCalls.Load())
	assert.Equal(t, 4, r.Len())
}

func TestIndexedRetriever_EvictOldest(t *testing.T) {
	emb := newCountingEmbedder()
	r, err := NewIndexedRetriever(emb)
	require.NoError(t, err)

	chunks := energyChunks()
	ctx := context.Background()
	_, err = r.Retrieve(ctx, "solar", chunks)
	require.NoError(t, err)
	_, err = r.Retrieve(ctx, "wind", chunks[2:])
	require.NoError(t, err)

	assert.Equal(t, 0, r.EvictOldest(0))
	assert.Equal(t, 0, r.EvictOldest(-1))
	assert.Equal(t, 2, r.EvictOldest(0.5))
	assert.Equal(t, 2, r.Len())

	// The recently queried chunks survive and are not re-embedded.
	_, err = r.Retrieve(ctx, "solar", chunks[2:])
	require.NoError(t, err)
	assert.Equal(t, int32(4), emb.docTexts.Load())

	scored, err := r.Retrieve(ctx, "solar energy", chunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"b#0", "a#0", "a#1", "b#1"}, ids(scored))
	assert.Equal(t, 4, r.Len(), "evicted chunks are indexed again")
	assert.Equal(t, int32(6), emb.docTexts.Load())

	assert.Equal(t, 4, r.EvictOldest(3))
	assert.Equal(t, 0, r.Len())
}
