package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/contextpack/internal/http"

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// requestMetrics records per-route request counts, latency and payload size.
type requestMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	size     metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// newRequestMetrics creates the instruments on meter. Instruments that fail
// to register are left nil and skipped; the joined error is returned with
// the usable remainder.
func newRequestMetrics(meter metric.Meter) (*requestMetrics, error) {
	var (
		m    requestMetrics
		errs [4]error
	)
	m.requests, errs[0] = meter.Int64Counter("contextpack.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status."),
		metric.WithUnit("{request}"))
	m.latency, errs[1] = meter.Float64Histogram("contextpack.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	m.size, errs[2] = meter.Int64Histogram("contextpack.http.response_size_bytes",
		metric.WithDescription("HTTP response body size."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(128, 1024, 8192, 65536, 524288, 4194304))
	m.inFlight, errs[3] = meter.Int64UpDownCounter("contextpack.http.active_requests",
		metric.WithDescription("HTTP requests being served."),
		metric.WithUnit("{request}"))
	return &m, errors.Join(errs[:]...)
}

// middleware wraps every request with the instruments.
func (m *requestMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)
			if err != nil {
				// Resolve the status the error handler will write.
				c.Error(err)
				err = nil
			}

			status := c.Response().Status
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.String("status", strconv.Itoa(status)),
				attribute.String("status_class", statusClass(status)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.size != nil {
				m.size.Record(ctx, c.Response().Size, attrs)
			}
			return err
		}
	}
}

// routeLabel is the matched route pattern; unmatched requests share "/".
func routeLabel(route string) string {
	if route == "" {
		return "/"
	}
	return route
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// defaultRequestMetrics uses the global meter provider.
func defaultRequestMetrics() (*requestMetrics, error) {
	return newRequestMetrics(otel.Meter(instrumentationName))
}
