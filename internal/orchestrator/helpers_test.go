package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextpack/internal/chunking"
	"github.com/fyrsmithlabs/contextpack/internal/compression"
	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/embeddings"
	"github.com/fyrsmithlabs/contextpack/internal/memory"
	"github.com/fyrsmithlabs/contextpack/internal/retrieval"
	"github.com/fyrsmithlabs/contextpack/internal/secrets"
)

var renewable = []string{
	"Renewable energy comes from natural sources that are constantly replenished.",
	"Renewable energy comes from natural sources that are continually replenished.",
	"Renewable energy comes from natural sources which are constantly replenished.",
	"Renewable energy comes from natural resources that are constantly replenished.",
	"Renewable energy comes from natural sources that are constantly replenished.",
}

var climate = []string{
	"Climate change is a significant alteration in global weather patterns over extended periods.",
	"Climate change is a significant shift in global weather patterns over extended periods.",
	"Climate change is a major alteration in global weather patterns over extended periods.",
	"Climate change is a significant alteration in global weather patterns over long periods.",
	"Climate change is a significant alteration in global weather patterns over extended periods.",
}

// topicDocument is the ten near-duplicate sentences as one document.
func topicDocument() string {
	return strings.Join(append(append([]string{}, renewable...), climate...), " ")
}

type managerSetup struct {
	cfg       Config
	chunkSize int
	threshold float64
	retriever retrieval.Retriever
	governor  memory.Governor
	scrubber  secrets.Scrubber
	extra     []Option
	embedder  embeddings.Embedder
}

// newTestManager builds a manager on the hashing embedder.
func newTestManager(t *testing.T, s managerSetup) *ContextManager {
	t.Helper()

	if s.cfg.MaxContextSize == 0 {
		s.cfg = DefaultConfig()
	}
	if s.chunkSize == 0 {
		s.chunkSize = chunking.DefaultChunkSize
	}
	if s.threshold == 0 {
		s.threshold = compression.DefaultThreshold
	}
	if s.embedder == nil {
		s.embedder = embeddings.NewHashProvider(0)
	}

	chunker, err := chunking.NewSemanticChunker(s.chunkSize)
	require.NoError(t, err)
	dedup, err := compression.NewSemanticDeduplicator(s.threshold, s.embedder)
	require.NoError(t, err)
	if s.retriever == nil {
		s.retriever, err = retrieval.NewCPUOptimizedRetriever(s.embedder)
		require.NoError(t, err)
	}

	opts := []Option{
		WithChunker(chunker),
		WithCompressor(dedup),
		WithRetriever(s.retriever),
		WithGovernor(s.governor),
		WithScrubber(s.scrubber),
	}
	m, err := New(s.cfg, append(opts, s.extra...)...)
	require.NoError(t, err)
	return m
}

// fakeGovernor caps budgets and reports a fixed throttle state.
type fakeGovernor struct {
	cap      int
	throttle bool

	mu       sync.Mutex
	evictors []memory.Evictor
}

func (g *fakeGovernor) CurrentUsage(context.Context) memory.Usage {
	return memory.Usage{}
}

func (g *fakeGovernor) AdviseBudget(_ context.Context, requested int) memory.Advice {
	budget := requested
	if g.cap > 0 && g.cap < requested {
		budget = g.cap
	}
	return memory.Advice{Requested: requested, Budget: budget, Degraded: budget < requested}
}

func (g *fakeGovernor) ShouldThrottle(context.Context) bool {
	return g.throttle
}

func (g *fakeGovernor) Register(e memory.Evictor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictors = append(g.evictors, e)
}

// scriptedRetriever scores chunks by their first word.
type scriptedRetriever struct {
	scores map[string]float64
	err    error
}

func (r *scriptedRetriever) Retrieve(_ context.Context, _ string, chunks []*corpus.Chunk) ([]retrieval.ScoredChunk, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]retrieval.ScoredChunk, len(chunks))
	for i, c := range chunks {
		first, _, _ := strings.Cut(c.Content, " ")
		out[i] = retrieval.ScoredChunk{Chunk: c, Score: r.scores[first]}
	}
	retrieval.Rank(out)
	return out, nil
}

var errScrub = errors.New("scrub failed")

// failingScrubber rejects content containing "fail".
type failingScrubber struct{}

func (failingScrubber) Scrub(content string) (*secrets.Result, error) {
	if strings.Contains(content, "fail") {
		return nil, errScrub
	}
	return secrets.NoopScrubber{}.Scrub(content)
}

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model unavailable")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func words(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}
