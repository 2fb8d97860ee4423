package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(nil, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *OTelConfig
		wantErr bool
	}{
		{"disabled", &OTelConfig{ServiceName: "t", SampleRatio: 1}, false},
		{"stdout tracing", &OTelConfig{ServiceName: "t", EnableTracing: true, TraceExporter: "stdout", SampleRatio: 1}, false},
		{"bad trace exporter", &OTelConfig{ServiceName: "t", EnableTracing: true, TraceExporter: "jaeger"}, true},
		{"bad metric exporter", &OTelConfig{ServiceName: "t", EnableMetrics: true, MetricExporter: "statsd"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordCacheLookup(context.Background(), metrics, "bytes", "hit")

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cache_lookups_total")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestBusinessMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	RecordCacheLookup(ctx, metrics, "tables", "miss")
	RecordCacheLookup(ctx, metrics, "tables", "hit")
	RecordRemoteFetch(ctx, metrics, "content", false)
	RecordWorkbookParse(ctx, metrics, 10*time.Millisecond, true)
	RecordAggregateCategory(ctx, metrics, "overview", "weekly_averages", "failed")
	RecordArchiveBuild(ctx, metrics, map[string]int{"original": 2, "overview": 1}, time.Second, errors.New("boom"))
	RecordHTTPRequest(ctx, metrics, http.MethodGet, "/api/folders", http.StatusOK, time.Millisecond)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["cache_lookups_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["remote_fetches_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["workbook_parses_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["aggregate_categories_total"]))
	assert.Equal(t, int64(3), sumOf(t, got["archive_entries_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["system_errors_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["http_requests_total"]))
}

func TestRecordHelpersTolerateNilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordCacheLookup(ctx, nil, "bytes", "hit")
		RecordRemoteFetch(ctx, nil, "metadata", false)
		RecordWorkbookParse(ctx, nil, time.Second, false)
		RecordAggregateCategory(ctx, nil, "compiled", "metadata", "empty")
		RecordArchiveBuild(ctx, nil, nil, time.Second, nil)
		RecordHTTPRequest(ctx, nil, http.MethodGet, "/", http.StatusOK, time.Second)
	})
}
