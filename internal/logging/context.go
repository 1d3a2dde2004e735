package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestCtxKey struct{}
type documentCtxKey struct{}

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := DocumentIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("document.id", id))
	}
	return fields
}

// WithRequestID tags ctx with the ID of the API request being served.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithDocumentID tags ctx with the document being ingested.
func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, id)
}

// DocumentIDFromContext returns the document ID or "".
func DocumentIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(documentCtxKey{}).(string)
	return id
}
