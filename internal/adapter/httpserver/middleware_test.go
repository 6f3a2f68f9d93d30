package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/statusfeed/internal/platform/correlation"
	apperrors "github.com/pscheid92/statusfeed/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runErrorMiddleware calls handler through ErrorHandlingMiddleware and
// returns the recorder plus whatever the middleware itself returned.
func runErrorMiddleware(t *testing.T, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/snapshots/carol", nil), rec)
	return rec, ErrorHandlingMiddleware()(handler)(c)
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorMiddleware_StatusPerType(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   apperrors.ErrorType
		wantMsg    string
	}{
		{"validation", apperrors.ValidationError("invalid"), http.StatusBadRequest, apperrors.TypeValidation, "invalid"},
		{"not found", apperrors.NotFoundError("missing"), http.StatusNotFound, apperrors.TypeNotFound, "missing"},
		{"internal", apperrors.InternalError("render failed", errors.New("cause")), http.StatusInternalServerError, apperrors.TypeInternal, "render failed"},
		{"plain error hides its text", errors.New("db password wrong"), http.StatusInternalServerError, apperrors.TypeInternal, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := runErrorMiddleware(t, func(echo.Context) error { return tt.err })

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeErrorResponse(t, rec)
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.wantMsg, resp.Error)
		})
	}
}

func TestErrorMiddleware_ContextFields(t *testing.T) {
	rec, err := runErrorMiddleware(t, func(echo.Context) error {
		return apperrors.NotFoundError("subscriber not found").WithField("name", "carol")
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"name": "carol"}, decodeErrorResponse(t, rec).Context)
}

func TestErrorMiddleware_NoError(t *testing.T) {
	rec, err := runErrorMiddleware(t, func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
}

func TestErrorMiddleware_PassesThroughHTTPError(t *testing.T) {
	rec, err := runErrorMiddleware(t, func(echo.Context) error {
		return echo.NewHTTPError(http.StatusMethodNotAllowed)
	})

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusMethodNotAllowed, httpErr.Code)
	assert.Empty(t, rec.Body.String(), "echo's handler writes the response")
}

func TestCorrelationMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generated when absent", "", false},
		{"reuses a valid request id", "abc-123", true},
		{"replaces an oversized id", strings.Repeat("a", 65), false},
		{"replaces unsafe characters", "abc\nforged=1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(echo.HeaderXRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()

			var got string
			handler := correlationMiddleware(func(c echo.Context) error {
				got, _ = correlation.ID(c.Request().Context())
				return nil
			})
			require.NoError(t, handler(e.NewContext(req, rec)))

			require.NotEmpty(t, got)
			assert.Equal(t, got, rec.Header().Get(echo.HeaderXRequestID))
			if tt.wantSame {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
			}
		})
	}
}

func TestRequestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, requestLogLevel("/", http.StatusOK))
	assert.Equal(t, slog.LevelInfo, requestLogLevel("/api/snapshots/:name", http.StatusNotFound))
	assert.Equal(t, slog.LevelDebug, requestLogLevel("/health/live", http.StatusOK))
	assert.Equal(t, slog.LevelDebug, requestLogLevel("/static/*", http.StatusOK))
	assert.Equal(t, slog.LevelError, requestLogLevel("/", http.StatusInternalServerError))
}
