package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/contextpack/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

const shutdownTimeout = 5 * time.Second

// Telemetry owns the SDK providers installed as otel globals.
type Telemetry struct {
	enabled        bool
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	logProvider    log.LoggerProvider
	degraded       atomic.Bool
}

// New validates cfg and, when enabled, installs tracer and meter providers.
// A provider that cannot be built marks the instance degraded and is skipped.
func New(ctx context.Context, cfg config.TelemetryConfig, version string, opts ...Option) (*Telemetry, error) {
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	o := options{onDegraded: func(error) {}}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg, version)

	texp := o.traceExporter
	if texp == nil {
		var err error
		if texp, err = newTraceExporter(ctx, cfg); err != nil {
			t.degraded.Store(true)
			o.onDegraded(wrapSetup("creating trace exporter", err))
		}
	}
	if texp != nil {
		t.tracerProvider = newTracerProvider(texp, res, cfg.SampleRate)
		otel.SetTracerProvider(t.tracerProvider)
	}

	mexp := o.metricExporter
	if mexp == nil {
		var err error
		if mexp, err = newMetricExporter(ctx, cfg); err != nil {
			t.degraded.Store(true)
			o.onDegraded(wrapSetup("creating metric exporter", err))
		}
	}
	if mexp != nil {
		t.meterProvider = newMeterProvider(mexp, res)
		otel.SetMeterProvider(t.meterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Enabled reports whether telemetry was requested.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.enabled
}

// Degraded reports whether any provider failed to start.
func (t *Telemetry) Degraded() bool {
	return t != nil && t.degraded.Load()
}

// LoggerProvider returns the provider for the zap OTEL bridge. Unless one
// was set, it is the otel global, which discards records until an SDK
// provider is installed.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.logProvider == nil {
		return global.GetLoggerProvider()
	}
	return t.logProvider
}

// SetLoggerProvider sets the provider returned by LoggerProvider.
func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t != nil {
		t.logProvider = lp
	}
}

// ForceFlush exports pending spans and metrics.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both providers. Without a deadline on ctx it
// waits at most five seconds.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
