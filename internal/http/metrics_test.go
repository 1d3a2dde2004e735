package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/contextpack/internal/telemetry"
)

func TestRequestMetrics_Middleware(t *testing.T) {
	tel := telemetry.NewTestTelemetry(t)

	metrics, err := defaultRequestMetrics()
	require.NoError(t, err)
	e := echo.New()
	e.Use(metrics.middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/context", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"context": ""})
	})
	e.GET("/api/v1/stats", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "busy")
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/context", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil),
	} {
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	rm, err := tel.Collect(context.Background())
	require.NoError(t, err)

	requests, ok := telemetry.FindMetric(rm, "contextpack.http.requests_total")
	require.True(t, ok, "requests counter")
	sum, ok := requests.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total, failed int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
		if class, _ := dp.Attributes.Value("status_class"); class.AsString() == "5xx" {
			failed += dp.Value
			route, _ := dp.Attributes.Value("route")
			assert.Equal(t, "/api/v1/stats", route.AsString())
		}
	}
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(1), failed)

	duration, ok := telemetry.FindMetric(rm, "contextpack.http.request_duration_seconds")
	require.True(t, ok, "duration histogram")
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(4), count)

	_, ok = telemetry.FindMetric(rm, "contextpack.http.response_size_bytes")
	assert.True(t, ok, "response size histogram")
}

func TestRouteLabelAndStatusClass(t *testing.T) {
	assert.Equal(t, "/", routeLabel(""))
	assert.Equal(t, "/api/v1/chunks", routeLabel("/api/v1/chunks"))

	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{413, "4xx"},
		{500, "5xx"},
		{0, "unknown"},
		{700, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.status), "status %d", tt.status)
	}
}
