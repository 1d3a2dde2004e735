package corpus

import (
	"strconv"
	"sync/atomic"
)

// Chunk is a contiguous segment of a document.
//
// The embedding slot is filled lazily by retrievers and may be cleared under
// memory pressure. Chunks must be shared by pointer.
type Chunk struct {
	ID          string
	DocumentID  string
	DocumentSeq uint64
	Content     string
	Position    int
	TokenCount  int

	embedding atomic.Pointer[[]float32]
}

// NewChunk creates a chunk for the given document position.
func NewChunk(documentID, content string, position int) *Chunk {
	return &Chunk{
		ID:         ChunkID(documentID, position),
		DocumentID: documentID,
		Content:    content,
		Position:   position,
		TokenCount: CountTokens(content),
	}
}

// ChunkID returns the canonical chunk id for a document position.
func ChunkID(documentID string, position int) string {
	return documentID + "#" + strconv.Itoa(position)
}

// Embedding returns the cached embedding or nil.
func (c *Chunk) Embedding() []float32 {
	if v := c.embedding.Load(); v != nil {
		return *v
	}
	return nil
}

// SetEmbedding caches an embedding on the chunk.
func (c *Chunk) SetEmbedding(vec []float32) {
	c.embedding.Store(&vec)
}

// ClearEmbedding drops the cached embedding.
func (c *Chunk) ClearEmbedding() {
	c.embedding.Store(nil)
}

// HasEmbedding reports whether an embedding is cached.
func (c *Chunk) HasEmbedding() bool {
	return c.embedding.Load() != nil
}

// Less orders chunks by document insertion order, then position.
func Less(a, b *Chunk) bool {
	if a.DocumentSeq != b.DocumentSeq {
		return a.DocumentSeq < b.DocumentSeq
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.ID < b.ID
}
