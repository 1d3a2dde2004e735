package orchestrator

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/logging"
	"github.com/fyrsmithlabs/contextpack/internal/retrieval"
)

// ContextResult is an assembled context with diagnostics.
type ContextResult struct {
	Context  string   `json:"context"`
	ChunkIDs []string `json:"chunk_ids"`
	Tokens   int      `json:"tokens"`
	// Requested is the configured or per-call budget.
	Requested int `json:"requested"`
	// Budget is the effective budget after governor advice.
	Budget     int  `json:"budget"`
	Degraded   bool `json:"degraded"`
	Candidates int  `json:"candidates"`
}

// GenerateContext returns the most relevant chunks for query that fit the
// budget, joined by the configured separator. An empty store yields "".
func (m *ContextManager) GenerateContext(ctx context.Context, query string, opts ...QueryOption) (string, error) {
	res, err := m.GenerateContextResult(ctx, query, opts...)
	if err != nil {
		return "", err
	}
	return res.Context, nil
}

// GenerateContextResult is GenerateContext with selection diagnostics.
func (m *ContextManager) GenerateContextResult(ctx context.Context, query string, opts ...QueryOption) (*ContextResult, error) {
	qo := queryOptions{maxContextSize: m.cfg.MaxContextSize}
	for _, opt := range opts {
		if err := opt(&qo); err != nil {
			return nil, err
		}
	}

	ctx, span := m.tracer.Start(ctx, "orchestrator.GenerateContext")
	defer span.End()

	if m.cfg.EvictChunks && m.governor.ShouldThrottle(ctx) {
		m.evictLeastRecent()
	}

	candidates := m.store.Snapshot().Chunks()
	ranked, err := m.retriever.Retrieve(ctx, query, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		outcome := "error"
		if isContextErr(err) {
			outcome = "canceled"
		}
		queriesServed.WithLabelValues(outcome).Inc()
		return nil, fmt.Errorf("ranking chunks: %w", err)
	}

	advice := m.governor.AdviseBudget(ctx, qo.maxContextSize)
	budget := min(qo.maxContextSize, advice.Budget)

	accepted, _ := pack(ranked, budget, corpus.CountTokens(m.cfg.Separator), m.logger)
	slices.SortFunc(accepted, func(a, b *corpus.Chunk) int {
		if corpus.Less(a, b) {
			return -1
		}
		if corpus.Less(b, a) {
			return 1
		}
		return 0
	})

	res := &ContextResult{
		ChunkIDs:   make([]string, len(accepted)),
		Requested:  qo.maxContextSize,
		Budget:     budget,
		Degraded:   advice.Degraded,
		Candidates: len(candidates),
	}
	parts := make([]string, len(accepted))
	for i, c := range accepted {
		res.ChunkIDs[i] = c.ID
		parts[i] = c.Content
	}
	res.Context = strings.Join(parts, m.cfg.Separator)
	// Joining can merge tokens at chunk edges, so count the result.
	res.Tokens = corpus.CountTokens(res.Context)
	tokens := res.Tokens

	m.mu.Lock()
	m.stats.Queries++
	m.stats.LastAdvice = advice
	tick := m.stats.Queries
	for _, id := range res.ChunkIDs {
		m.lastUsed[id] = tick
	}
	m.mu.Unlock()

	queriesServed.WithLabelValues("ok").Inc()
	contextTokens.Observe(float64(tokens))
	span.SetAttributes(
		attribute.Int("context.candidates", len(candidates)),
		attribute.Int("context.selected", len(accepted)),
		attribute.Int("context.tokens", tokens),
		attribute.Int("context.budget", budget),
		attribute.Bool("context.degraded", advice.Degraded),
	)
	m.logger.Debug("context assembled",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(accepted)),
		zap.Int("tokens", tokens),
		zap.Int("budget", budget))
	return res, nil
}

// pack accepts ranked chunks greedily. Every chunk after the first also
// pays sepTokens for the separator that will precede it. A chunk that would
// overflow the budget is skipped and packing continues with the next one.
// Decisions are logged at trace level.
func pack(ranked []retrieval.ScoredChunk, budget, sepTokens int, logger *zap.Logger) ([]*corpus.Chunk, int) {
	var (
		accepted []*corpus.Chunk
		used     int
	)
	for _, sc := range ranked {
		if used == budget {
			break
		}
		cost := sc.Chunk.TokenCount
		if len(accepted) > 0 {
			cost += sepTokens
		}
		fits := used+cost <= budget
		if ce := logger.Check(logging.TraceLevel, "pack decision"); ce != nil {
			ce.Write(
				zap.String("chunk.id", sc.Chunk.ID),
				zap.Float64("score", sc.Score),
				zap.Int("cost", cost),
				zap.Int("used", used),
				zap.Int("budget", budget),
				zap.Bool("accepted", fits))
		}
		if !fits {
			continue
		}
		accepted = append(accepted, sc.Chunk)
		used += cost
	}
	return accepted, used
}

// evictLeastRecent tombstones the least recently selected share of live
// chunks. Never-selected chunks go first, then insertion order.
func (m *ContextManager) evictLeastRecent() int {
	live := m.store.Snapshot().Chunks()
	n := int(math.Ceil(float64(len(live)) * m.cfg.EvictFraction))
	if n == 0 {
		return 0
	}

	m.mu.Lock()
	slices.SortStableFunc(live, func(a, b *corpus.Chunk) int {
		ta, tb := m.lastUsed[a.ID], m.lastUsed[b.ID]
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		}
		return 0
	})
	ids := make([]string, n)
	for i, c := range live[:n] {
		ids[i] = c.ID
		delete(m.lastUsed, c.ID)
	}
	m.mu.Unlock()

	evicted := m.store.Evict(ids)
	if f, ok := m.retriever.(retrieval.Forgetter); ok {
		f.Forget(ids)
	}

	m.mu.Lock()
	m.stats.EvictedChunks += evicted
	m.mu.Unlock()

	chunksEvicted.Add(float64(evicted))
	chunksStored.Set(float64(m.store.Snapshot().Len()))
	m.logger.Info("evicted chunks under memory pressure", zap.Int("chunks", evicted))
	return evicted
}
