package compression

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/chunking"
	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/embeddings"
)

const tracerName = "github.com/fyrsmithlabs/contextpack/internal/compression"
const meterName = "compression"

// similarityEpsilon absorbs float rounding so that identical vectors still
// merge at threshold 1.0.
const similarityEpsilon = 1e-9

// Option configures a SemanticDeduplicator.
type Option func(*SemanticDeduplicator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *SemanticDeduplicator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// SemanticDeduplicator implements first-seen-wins greedy clustering over
// embeddings.
type SemanticDeduplicator struct {
	threshold float64
	embedder  embeddings.Embedder
	logger    *zap.Logger

	tracer      trace.Tracer
	runs        metric.Int64Counter
	unitsTotal  metric.Int64Counter
	unitsKept   metric.Int64Counter
	ratio       metric.Float64Histogram
	runDuration metric.Float64Histogram

	mu   sync.Mutex
	last Stats
}

// NewSemanticDeduplicator creates a deduplicator. threshold must lie in [0, 1].
func NewSemanticDeduplicator(threshold float64, embedder embeddings.Embedder, opts ...Option) (*SemanticDeduplicator, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	if embedder == nil {
		return nil, ErrNilEmbedder
	}

	d := &SemanticDeduplicator{
		threshold: threshold,
		embedder:  embedder,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		last:      newStats(0, 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.initMetrics(otel.Meter(meterName)); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return d, nil
}

// Threshold returns the configured similarity threshold.
func (d *SemanticDeduplicator) Threshold() float64 {
	return d.threshold
}

// LastStats returns the statistics of the most recent run.
func (d *SemanticDeduplicator) LastStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Compress returns the units that survive deduplication, in input order.
func (d *SemanticDeduplicator) Compress(ctx context.Context, units []string) ([]string, error) {
	keep, err := d.Keep(ctx, units)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keep))
	for i, idx := range keep {
		out[i] = units[idx]
	}
	return out, nil
}

// CompressChunks deduplicates chunk contents. Discarded chunks are dropped;
// survivors keep their positions and carry the vector computed here, so a
// retriever using the same embedder does not embed them again.
func (d *SemanticDeduplicator) CompressChunks(ctx context.Context, chunks []*corpus.Chunk) ([]*corpus.Chunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	keep, vecs, err := d.keep(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]*corpus.Chunk, len(keep))
	for i, idx := range keep {
		chunks[idx].SetEmbedding(vecs[idx])
		out[i] = chunks[idx]
	}
	return out, nil
}

// CompressText segments text into sentences, deduplicates them and joins the
// survivors with single spaces.
func (d *SemanticDeduplicator) CompressText(ctx context.Context, text string) (string, error) {
	kept, err := d.Compress(ctx, chunking.Segment(text))
	if err != nil {
		return "", err
	}
	return strings.Join(kept, " "), nil
}

// Keep returns the indices of the surviving units in ascending order.
func (d *SemanticDeduplicator) Keep(ctx context.Context, units []string) ([]int, error) {
	keep, _, err := d.keep(ctx, units)
	return keep, err
}

// keep is Keep that also returns the validated unit vectors.
func (d *SemanticDeduplicator) keep(ctx context.Context, units []string) ([]int, [][]float32, error) {
	if len(units) == 0 {
		d.record(ctx, newStats(0, 0), 0)
		return nil, nil, nil
	}

	ctx, span := d.tracer.Start(ctx, "compression.deduplicate",
		trace.WithAttributes(
			attribute.Int("units", len(units)),
			attribute.Float64("threshold", d.threshold),
		),
	)
	defer span.End()

	start := time.Now()

	vecs, err := d.embedder.EmbedDocuments(ctx, units)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, nil, fmt.Errorf("embedding units: %w", embeddings.WrapFailure(err))
	}
	if _, err := embeddings.ValidateVectors(vecs, len(units)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid vectors")
		return nil, nil, fmt.Errorf("embedding units: %w", err)
	}

	keep := cluster(vecs, d.threshold)

	stats := newStats(len(units), len(keep))
	d.record(ctx, stats, time.Since(start))

	span.SetAttributes(
		attribute.Int("kept", stats.Kept),
		attribute.Float64("ratio", stats.Ratio),
	)
	d.logger.Debug("deduplicated units",
		zap.Int("total", stats.Total),
		zap.Int("kept", stats.Kept),
		zap.Float64("threshold", d.threshold))

	return keep, vecs, nil
}

// cluster walks vecs in order and keeps a vector unless it is within
// threshold of an already kept representative.
func cluster(vecs [][]float32, threshold float64) []int {
	var keep []int
	for i, v := range vecs {
		duplicate := false
		for _, r := range keep {
			if embeddings.CosineSimilarity(v, vecs[r])+similarityEpsilon >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			keep = append(keep, i)
		}
	}
	return keep
}

func (d *SemanticDeduplicator) record(ctx context.Context, s Stats, elapsed time.Duration) {
	d.mu.Lock()
	d.last = s
	d.mu.Unlock()

	if s.Total == 0 {
		return
	}
	attrs := metric.WithAttributes(attribute.Float64("threshold", d.threshold))
	d.runs.Add(ctx, 1, attrs)
	d.unitsTotal.Add(ctx, int64(s.Total), attrs)
	d.unitsKept.Add(ctx, int64(s.Kept), attrs)
	d.ratio.Record(ctx, s.Ratio, attrs)
	d.runDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// initMetrics initializes OpenTelemetry metrics
func (d *SemanticDeduplicator) initMetrics(meter metric.Meter) error {
	var err error

	d.runs, err = meter.Int64Counter(
		"contextpack.compression.runs_total",
		metric.WithDescription("Total number of deduplication runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create runs counter: %w", err)
	}

	d.unitsTotal, err = meter.Int64Counter(
		"contextpack.compression.units_total",
		metric.WithDescription("Units submitted for deduplication"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create units counter: %w", err)
	}

	d.unitsKept, err = meter.Int64Counter(
		"contextpack.compression.units_kept_total",
		metric.WithDescription("Units surviving deduplication"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create kept counter: %w", err)
	}

	d.ratio, err = meter.Float64Histogram(
		"contextpack.compression.ratio",
		metric.WithDescription("Kept/total ratio per deduplication run"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 0.75, 0.9, 1.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create ratio histogram: %w", err)
	}

	d.runDuration, err = meter.Float64Histogram(
		"contextpack.compression.duration_seconds",
		metric.WithDescription("Time spent deduplicating, including embedding"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return nil
}
