package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolicense/internal/config"
)

func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	providers, err := InitializeOTel(nil, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestTraceCorrelation(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	providers, err := InitializeOTel(nil, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "commerce.synchronize")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.TelemetryConfig{Enabled: false, ServiceName: "svc", TraceStdout: true})
	assert.Equal(t, "none", cfg.MetricExporter)
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.Equal(t, "svc", cfg.ServiceName)

	providers, err := InitializeOTel(&OTelConfig{ServiceName: "svc", MetricExporter: "none", TraceExporter: "none", SampleRatio: 1}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter)

	_, err = InitializeOTel(&OTelConfig{MetricExporter: "bogus"}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestEngineMetrics_PrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := NewEngineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordSync(ctx, "partial", 40*time.Millisecond, 1, 2, 0)
	metrics.RecordResolution(ctx, "")
	metrics.RecordVerification(ctx, "NotYetActive")
	metrics.RecordIssue(ctx, "issued", 5*time.Millisecond)
	metrics.RecordCatalogMutation(ctx, "upsert")

	w := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "commerce_sync_runs_total")
	assert.Contains(t, body, `strategy="none"`)
	assert.Contains(t, body, `result="NotYetActive"`)
}

func TestEngineMetrics_NilSafe(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.RecordSync(context.Background(), "ok", time.Second, 0, 0, 0)
		m.RecordHTTPRequest(context.Background(), "GET", "/x", 200, time.Millisecond)
	})
	assert.NotNil(t, NoopEngineMetrics())
}
