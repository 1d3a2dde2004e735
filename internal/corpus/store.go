package corpus

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
)

// span is the arena index range [start, end) owned by a document.
type span struct {
	doc        *Document
	start, end int
}

// Snapshot is an immutable view of the store.
type Snapshot struct {
	arena      []*Chunk // nil entries are tombstones
	spans      map[string]span
	order      []string // document ids by Seq
	tombstones int
	nextSeq    uint64
}

// Chunks returns the live chunks in document insertion and position order.
func (s *Snapshot) Chunks() []*Chunk {
	out := make([]*Chunk, 0, len(s.arena)-s.tombstones)
	for _, c := range s.arena {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of live chunks.
func (s *Snapshot) Len() int {
	return len(s.arena) - s.tombstones
}

// Tombstones returns the number of evicted chunks still occupying the arena.
func (s *Snapshot) Tombstones() int {
	return s.tombstones
}

// Document returns a registered document.
func (s *Snapshot) Document(id string) (*Document, bool) {
	sp, ok := s.spans[id]
	if !ok {
		return nil, false
	}
	return sp.doc, true
}

// Documents returns the registered documents in insertion order.
func (s *Snapshot) Documents() []*Document {
	docs := make([]*Document, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, s.spans[id].doc)
	}
	return docs
}

// ChunksOf returns the live chunks of a document in position order.
func (s *Snapshot) ChunksOf(id string) []*Chunk {
	sp, ok := s.spans[id]
	if !ok {
		return nil
	}
	var out []*Chunk
	for _, c := range s.arena[sp.start:sp.end] {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Store is the append-only chunk store.
type Store struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[Snapshot]

	// compactRatio is the tombstone fraction that triggers compaction.
	compactRatio float64
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{compactRatio: 0.5}
	s.snap.Store(emptySnapshot())
	return s
}

func emptySnapshot() *Snapshot {
	return &Snapshot{spans: make(map[string]span)}
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Register appends a document and its chunks as one atomic step.
// The document Seq and every chunk's DocumentSeq are assigned here.
func (s *Store) Register(doc *Document, chunks []*Chunk) error {
	for _, c := range chunks {
		if c.DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %s in document %s", ErrUnknownDocument, c.ID, doc.ID)
		}
		if c.TokenCount <= 0 {
			return fmt.Errorf("%w: chunk %s", ErrEmptyChunk, c.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	if _, exists := cur.spans[doc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
	}

	doc.Seq = cur.nextSeq
	for _, c := range chunks {
		c.DocumentSeq = doc.Seq
	}

	// Appending never rewrites indices visible to older snapshots, so the
	// backing array can be shared.
	start := len(cur.arena)
	arena := append(cur.arena, chunks...)

	spans := maps.Clone(cur.spans)
	spans[doc.ID] = span{doc: doc, start: start, end: len(arena)}

	order := make([]string, len(cur.order), len(cur.order)+1)
	copy(order, cur.order)
	order = append(order, doc.ID)

	s.snap.Store(&Snapshot{
		arena:      arena,
		spans:      spans,
		order:      order,
		tombstones: cur.tombstones,
		nextSeq:    cur.nextSeq + 1,
	})
	return nil
}

// Evict tombstones the chunks with the given ids. Documents stay registered.
// Returns the number of chunks evicted.
func (s *Store) Evict(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	arena := make([]*Chunk, len(cur.arena))
	copy(arena, cur.arena)

	evicted := 0
	for i, c := range arena {
		if c == nil {
			continue
		}
		if _, ok := want[c.ID]; ok {
			c.ClearEmbedding()
			arena[i] = nil
			evicted++
		}
	}
	if evicted == 0 {
		return 0
	}

	next := &Snapshot{
		arena:      arena,
		spans:      cur.spans,
		order:      cur.order,
		tombstones: cur.tombstones + evicted,
		nextSeq:    cur.nextSeq,
	}
	if len(arena) > 0 && float64(next.tombstones)/float64(len(arena)) > s.compactRatio {
		next = compact(next)
	}
	s.snap.Store(next)
	return evicted
}

// compact rebuilds the arena without tombstones.
func compact(in *Snapshot) *Snapshot {
	arena := make([]*Chunk, 0, len(in.arena)-in.tombstones)
	spans := make(map[string]span, len(in.spans))
	for _, id := range in.order {
		sp := in.spans[id]
		start := len(arena)
		for _, c := range in.arena[sp.start:sp.end] {
			if c != nil {
				arena = append(arena, c)
			}
		}
		spans[id] = span{doc: sp.doc, start: start, end: len(arena)}
	}
	return &Snapshot{
		arena:   arena,
		spans:   spans,
		order:   in.order,
		nextSeq: in.nextSeq,
	}
}

// Reset drops every document and chunk.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Store(emptySnapshot())
}
