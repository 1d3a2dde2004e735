package corpus

import (
	"maps"
	"strings"
	"time"
)

// Document is an ingested source text. It is immutable once registered.
type Document struct {
	ID        string
	Seq       uint64
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// NewDocument creates an unregistered document. Metadata is copied.
func NewDocument(id, content string, metadata map[string]any) *Document {
	var md map[string]any
	if len(metadata) > 0 {
		md = maps.Clone(metadata)
	}
	return &Document{
		ID:        id,
		Content:   content,
		Metadata:  md,
		CreatedAt: time.Now().UTC(),
	}
}

// CountTokens returns the number of whitespace-delimited tokens in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
