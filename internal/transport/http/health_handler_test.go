package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "noisereports/internal/errors"
	"noisereports/internal/services"
	"noisereports/internal/shared/testutil"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		driveErr   error
		wantStatus int
		wantState  string
	}{
		{name: "health", path: "/api/health", wantStatus: http.StatusOK, wantState: "ok"},
		{name: "live", path: "/api/health/live", wantStatus: http.StatusOK, wantState: "alive"},
		{name: "ready", path: "/api/health/ready", wantStatus: http.StatusOK, wantState: "ready"},
		{name: "not ready", path: "/api/health/ready", driveErr: errors.New("parent folder unreachable"), wantStatus: http.StatusServiceUnavailable, wantState: "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			svc := services.NewHealthService("1.2.3", "2024-05-01", "abc", map[string]services.ReadinessCheck{
				"drive": func(context.Context) error { return tt.driveErr },
			}, logger)

			r := chi.NewRouter()
			r.Mount("/api/health", NewHealthHandler(svc, logger).Routes())

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantStatus, w.Code)
			var status services.HealthStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
			assert.Equal(t, tt.wantState, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewHealthHandler(services.NewHealthService("1.2.3", "2024-05-01", "abc", nil, logger), logger)

	w := httptest.NewRecorder()
	h.Version(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1.2.3", body["version"])
}

func TestMetricsHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	NewMetricsHandler(nil, errorHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP http_requests_total\n"))
	})
	w = httptest.NewRecorder()
	NewMetricsHandler(exporter, errorHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
