package embeddings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/contextpack/internal/embeddings"

// Operation labels.
const (
	opDocuments = "embed_documents"
	opQuery     = "embed_query"
)

// Metrics records provider latency, volume and failures.
type Metrics struct {
	latency  metric.Float64Histogram
	texts    metric.Int64Counter
	failures metric.Int64Counter
}

// NewMetrics creates provider metrics on the global meter provider.
// Registration problems are logged and the affected instrument is skipped.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := newMetrics(otel.Meter(instrumentationName))
	if err != nil {
		logger.Warn("embedding metrics partially unavailable", zap.Error(err))
	}
	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var e1, e2, e3 error
	m.latency, e1 = meter.Float64Histogram("contextpack.embedding.generation_duration_seconds",
		metric.WithDescription("Embedding call latency by model and operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10))
	m.texts, e2 = meter.Int64Counter("contextpack.embedding.texts_total",
		metric.WithDescription("Texts submitted for embedding."),
		metric.WithUnit("{text}"))
	m.failures, e3 = meter.Int64Counter("contextpack.embedding.errors_total",
		metric.WithDescription("Failed embedding calls."),
		metric.WithUnit("{error}"))
	return &m, errors.Join(e1, e2, e3)
}

// RecordGeneration records one provider call that embedded n texts.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, elapsed time.Duration, n int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.latency != nil {
		m.latency.Record(ctx, elapsed.Seconds(), attrs)
	}
	if m.texts != nil && n > 0 {
		m.texts.Add(ctx, int64(n), attrs)
	}
	if m.failures != nil && err != nil {
		m.failures.Add(ctx, 1, attrs)
	}
}
