// Package telemetry wires OpenTelemetry tracing and metrics for contextpack.
//
// New installs global tracer and meter providers exporting over OTLP (gRPC or
// HTTP). Pipeline packages obtain tracers and meters from the otel globals, so
// they need no reference to this package. Export failures degrade the
// instance instead of failing startup.
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry, version.Version)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests install in-memory providers with NewTestTelemetry.
package telemetry
