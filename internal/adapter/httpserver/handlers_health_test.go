package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func serveHealth(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleLiveness(t *testing.T) {
	rec := serveHealth(t, newTestServer(t), "/health/live")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp livenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Subscribers)
	assert.Equal(t, 0, resp.Viewers)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "watchers", Check: healthOK},
				{Name: "redis", Check: healthOK},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantChecks: map[string]string{"watchers": "ok", "redis": "ok"},
		},
		{
			name: "redis down",
			checks: []HealthCheck{
				{Name: "watchers", Check: healthOK},
				{Name: "redis", Check: healthErr("connection refused")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"watchers": "ok", "redis": "connection refused"},
		},
		{
			name: "every failure reported",
			checks: []HealthCheck{
				{Name: "watchers", Check: healthErr("watchers not started")},
				{Name: "redis", Check: healthErr("connection refused")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"watchers": "watchers not started", "redis": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveHealth(t, newTestServer(t, withHealthChecks(tt.checks...)), "/health/ready")

			require.Equal(t, tt.wantCode, rec.Code)
			var resp readinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHandleVersion(t *testing.T) {
	rec := serveHealth(t, newTestServer(t), "/version")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dev", body["version"])
	assert.Contains(t, body, "go_version")
	assert.Contains(t, body, "build_time")
}
