package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, logger.Underlying())
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	assert.NoError(t, logger.Sync())
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "yaml"

	_, err := NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "invalid config")
}

func TestNewLogger_OTELWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	_, err := NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "at least one output")
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "trace message")
	tl.Debug(ctx, "debug message")
	tl.Info(ctx, "info message")
	tl.Warn(ctx, "warn message")
	tl.Error(ctx, "error message")

	tl.AssertLogged(t, TraceLevel, "trace message")
	tl.AssertLogged(t, zapcore.DebugLevel, "debug message")
	tl.AssertLogged(t, zapcore.InfoLevel, "info message")
	tl.AssertLogged(t, zapcore.WarnLevel, "warn message")
	tl.AssertLogged(t, zapcore.ErrorLevel, "error message")
	assert.Len(t, tl.All(), 5)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithDocumentID(ctx, "doc-1")

	tl.Info(ctx, "ingested", zap.Int("chunks", 3))

	tl.AssertTraceCorrelation(t, "ingested")
	tl.AssertField(t, "ingested", "request.id", "req-1")
	tl.AssertField(t, "ingested", "document.id", "doc-1")
	tl.AssertField(t, "ingested", "trace_id", sc.TraceID().String())
	entries := tl.FilterMessage("ingested").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["trace_sampled"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["chunks"])
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()

	child := tl.With(zap.String("component", "retrieval")).Named("cpu")
	child.Info(context.Background(), "ranked")

	entries := tl.FilterMessage("ranked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "cpu", entries[0].LoggerName)
	assert.Equal(t, "retrieval", entries[0].ContextMap()["component"])
}

func TestLogger_UnderlyingSharesCore(t *testing.T) {
	tl := NewTestLogger()

	tl.Underlying().Warn("from component")

	tl.AssertLogged(t, zapcore.WarnLevel, "from component")
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))
	assert.Equal(t, "", RequestIDFromContext(ctx))
	assert.Equal(t, "", DocumentIDFromContext(ctx))
}
