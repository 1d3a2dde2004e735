// Package logging builds the zap loggers used across contextpack.
//
// A Logger adds a Trace level below Debug, optional OpenTelemetry log export
// through the otelzap bridge, level-aware sampling that never drops errors,
// encoder-level redaction of sensitive field names and values, and automatic
// correlation fields taken from the context (trace and span IDs, request ID,
// document ID).
//
// Pipeline components accept a plain *zap.Logger; pass Logger.Underlying().
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "req-42")
//	logger.Info(ctx, "context generated", zap.Int("tokens", n))
//
// Tests observe output with NewTestLogger.
package logging
