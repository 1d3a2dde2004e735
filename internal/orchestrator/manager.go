package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/contextpack/internal/chunking"
	"github.com/fyrsmithlabs/contextpack/internal/compression"
	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/logging"
	"github.com/fyrsmithlabs/contextpack/internal/memory"
	"github.com/fyrsmithlabs/contextpack/internal/retrieval"
	"github.com/fyrsmithlabs/contextpack/internal/secrets"
)

const tracerName = "github.com/fyrsmithlabs/contextpack/internal/orchestrator"

// DocumentInput is one document for AddDocuments.
type DocumentInput struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentInfo describes a registered document.
type DocumentInfo struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Chunks   int            `json:"chunks"`
}

// Stats summarizes the manager state.
type Stats struct {
	Documents       int           `json:"documents"`
	Chunks          int           `json:"chunks"`
	EvictedChunks   int           `json:"evicted_chunks"`
	DedupRemoved    int           `json:"dedup_removed"`
	SecretsRedacted int           `json:"secrets_redacted"`
	Queries         uint64        `json:"queries"`
	LastAdvice      memory.Advice `json:"last_advice"`
}

// unitChunker is implemented by chunkers that accept pre-segmented units.
type unitChunker interface {
	ChunkUnits(units []string, documentID string) []*corpus.Chunk
}

// ContextManager ingests documents and assembles query contexts.
type ContextManager struct {
	cfg        Config
	chunker    chunking.Chunker
	compressor compression.Deduplicator
	retriever  retrieval.Retriever
	governor   memory.Governor
	scrubber   secrets.Scrubber
	logger     *zap.Logger
	tracer     trace.Tracer

	store *corpus.Store

	mu       sync.Mutex
	lastUsed map[string]uint64 // chunk id -> query tick of last selection
	stats    Stats
}

// New creates a ContextManager.
func New(cfg Config, opts ...Option) (*ContextManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	m := &ContextManager{
		cfg:      cfg,
		governor: memory.NoopGovernor{},
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
		store:    corpus.NewStore(),
		lastUsed: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.chunker == nil {
		return nil, fmt.Errorf("%w: chunker is required", ErrInvalidConfig)
	}
	if m.retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", ErrInvalidConfig)
	}
	if cfg.DedupEnabled && m.compressor == nil {
		return nil, fmt.Errorf("%w: compressor is required when dedup is enabled", ErrInvalidConfig)
	}

	if ev, ok := m.retriever.(memory.Evictor); ok {
		m.governor.Register(ev)
	}
	return m, nil
}

// Config returns the manager settings.
func (m *ContextManager) Config() Config {
	return m.cfg
}

// prepared is a document ready to be committed to the store.
type prepared struct {
	doc      *corpus.Document
	chunks   []*corpus.Chunk
	removed  int
	redacted int
}

// AddDocument ingests one document and returns its id. Empty content
// registers a document without chunks.
func (m *ContextManager) AddDocument(ctx context.Context, content string, metadata map[string]any) (string, error) {
	ctx, span := m.tracer.Start(ctx, "orchestrator.AddDocument")
	defer span.End()

	p, err := m.prepare(ctx, content, metadata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare failed")
		return "", err
	}
	if err := m.commit(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return "", err
	}
	span.SetAttributes(
		attribute.String("document.id", p.doc.ID),
		attribute.Int("document.chunks", len(p.chunks)),
	)
	return p.doc.ID, nil
}

// AddDocuments ingests documents concurrently and commits them in input
// order. On failure the documents before the first failing one stay
// committed and their ids are returned with the error.
func (m *ContextManager) AddDocuments(ctx context.Context, docs []DocumentInput) ([]string, error) {
	ctx, span := m.tracer.Start(ctx, "orchestrator.AddDocuments",
		trace.WithAttributes(attribute.Int("documents.count", len(docs))))
	defer span.End()

	results := make([]*prepared, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(m.cfg.IngestConcurrency)
	for i, d := range docs {
		g.Go(func() error {
			results[i], errs[i] = m.prepare(ctx, d.Content, d.Metadata)
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(docs))
	for i, p := range results {
		err := errs[i]
		if err == nil {
			err = m.commit(ctx, p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ingestion failed")
			return ids, fmt.Errorf("document %d: %w", i, err)
		}
		ids = append(ids, p.doc.ID)
	}
	return ids, nil
}

// prepare runs scrub, chunk and dedup for one document without touching the
// store.
func (m *ContextManager) prepare(ctx context.Context, content string, metadata map[string]any) (*prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &prepared{}
	id := uuid.NewString()
	ctx = logging.WithDocumentID(ctx, id)

	if m.scrubber != nil && strings.TrimSpace(content) != "" {
		res, err := m.scrubber.Scrub(content)
		if err != nil {
			return nil, fmt.Errorf("scrubbing document: %w", err)
		}
		if res.HasFindings() {
			content = res.Scrubbed
			p.redacted = res.Total()
			m.logger.Info("redacted secrets from document",
				append(logging.ContextFields(ctx), zap.Int("findings", res.Total()))...)
		}
	}

	p.doc = corpus.NewDocument(id, content, metadata)

	var err error
	switch {
	case !m.cfg.DedupEnabled:
		p.chunks = m.chunker.Chunk(content, id)
	case m.cfg.DedupGranularity == GranularitySentence:
		p.chunks, p.removed, err = m.dedupSentences(ctx, content, id)
	default:
		p.chunks, p.removed, err = m.dedupChunks(ctx, content, id)
	}
	if err != nil {
		return nil, fmt.Errorf("deduplicating document: %w", err)
	}

	m.logger.Debug("document prepared",
		append(logging.ContextFields(ctx),
			zap.Int("chunks", len(p.chunks)),
			zap.Int("dedup_removed", p.removed))...)
	return p, nil
}

func (m *ContextManager) dedupChunks(ctx context.Context, content, id string) ([]*corpus.Chunk, int, error) {
	chunks := m.chunker.Chunk(content, id)
	if len(chunks) == 0 {
		return nil, 0, nil
	}
	kept, err := m.compressor.CompressChunks(ctx, chunks)
	if err != nil {
		return nil, 0, err
	}
	return kept, len(chunks) - len(kept), nil
}

func (m *ContextManager) dedupSentences(ctx context.Context, content, id string) ([]*corpus.Chunk, int, error) {
	units := chunking.Segment(content)
	if len(units) == 0 {
		return nil, 0, nil
	}
	kept, err := m.compressor.Compress(ctx, units)
	if err != nil {
		return nil, 0, err
	}
	removed := len(units) - len(kept)
	if uc, ok := m.chunker.(unitChunker); ok {
		return uc.ChunkUnits(kept, id), removed, nil
	}
	// Paragraph breaks keep kept units apart when the chunker re-segments.
	return m.chunker.Chunk(strings.Join(kept, "\n\n"), id), removed, nil
}

func (m *ContextManager) commit(ctx context.Context, p *prepared) error {
	if err := m.store.Register(p.doc, p.chunks); err != nil {
		return fmt.Errorf("registering document: %w", err)
	}

	m.mu.Lock()
	m.stats.DedupRemoved += p.removed
	m.stats.SecretsRedacted += p.redacted
	m.mu.Unlock()

	documentsIngested.Inc()
	dedupRemoved.Add(float64(p.removed))
	chunksStored.Set(float64(m.store.Snapshot().Len()))

	m.logger.Info("document added",
		append(logging.ContextFields(logging.WithDocumentID(ctx, p.doc.ID)),
			zap.Uint64("seq", p.doc.Seq),
			zap.Int("chunks", len(p.chunks)))...)
	return nil
}

// Chunks returns the live chunks in document order. The chunks are shared
// and must not be modified.
func (m *ContextManager) Chunks() []*corpus.Chunk {
	return m.store.Snapshot().Chunks()
}

// Document returns a registered document.
func (m *ContextManager) Document(id string) (DocumentInfo, bool) {
	snap := m.store.Snapshot()
	doc, ok := snap.Document(id)
	if !ok {
		return DocumentInfo{}, false
	}
	return DocumentInfo{
		ID:       doc.ID,
		Metadata: doc.Metadata,
		Chunks:   len(snap.ChunksOf(id)),
	}, true
}

// Stats returns counters and the most recent budget advice.
func (m *ContextManager) Stats() Stats {
	snap := m.store.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Documents = len(snap.Documents())
	s.Chunks = snap.Len()
	return s
}

// Clear drops every document and chunk. The query counter is kept.
func (m *ContextManager) Clear() {
	chunks := m.store.Snapshot().Chunks()
	m.store.Reset()

	if f, ok := m.retriever.(retrieval.Forgetter); ok {
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		f.Forget(ids)
	}

	m.mu.Lock()
	m.lastUsed = make(map[string]uint64)
	m.stats = Stats{Queries: m.stats.Queries}
	m.mu.Unlock()

	chunksStored.Set(0)
	m.logger.Info("context manager cleared", zap.Int("chunks", len(chunks)))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
