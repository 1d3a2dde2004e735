package chunking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
)

// DefaultChunkSize is the target chunk size in tokens.
const DefaultChunkSize = 256

// ErrInvalidChunkSize indicates a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Chunker splits document text into ordered chunks.
type Chunker interface {
	// Chunk returns the chunks of text with positions starting at 0.
	// Empty or whitespace-only text yields no chunks.
	Chunk(text, documentID string) []*corpus.Chunk
}

// SemanticChunker packs whole sentence units into chunks of at most
// ChunkSize tokens.
type SemanticChunker struct {
	ChunkSize int
}

// NewSemanticChunker creates a chunker with the given token budget per chunk.
func NewSemanticChunker(size int) (*SemanticChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	return &SemanticChunker{ChunkSize: size}, nil
}

// Chunk segments text and packs the units.
func (c *SemanticChunker) Chunk(text, documentID string) []*corpus.Chunk {
	return c.ChunkUnits(Segment(text), documentID)
}

// ChunkUnits packs pre-segmented units in a single forward pass. A unit is
// added while the running token count stays within ChunkSize; otherwise the
// current chunk is closed and the unit starts the next one.
func (c *SemanticChunker) ChunkUnits(units []string, documentID string) []*corpus.Chunk {
	var (
		chunks []*corpus.Chunk
		cur    []string
		tokens int
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, corpus.NewChunk(documentID, strings.Join(cur, " "), len(chunks)))
		cur = cur[:0]
		tokens = 0
	}

	for _, u := range units {
		n := corpus.CountTokens(u)
		if n == 0 {
			continue
		}
		if len(cur) > 0 && tokens+n > c.ChunkSize {
			flush()
		}
		cur = append(cur, u)
		tokens += n
	}
	flush()

	return chunks
}
