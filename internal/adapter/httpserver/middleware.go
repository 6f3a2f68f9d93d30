package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/statusfeed/internal/platform/correlation"
	apperrors "github.com/pscheid92/statusfeed/internal/platform/errors"
)

// validRequestID bounds what a client may choose as its correlation ID.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// correlationMiddleware tags the request context with a correlation ID,
// reusing a sane incoming X-Request-Id, and echoes it in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if !validRequestID.MatchString(id) {
			id = correlation.NewID()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware writes handler errors as JSON. echo.HTTPErrors
// (router 404/405, rate limiter) pass through to echo's own handler.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

var errorLogLevels = map[apperrors.ErrorType]slog.Level{
	apperrors.TypeValidation: slog.LevelInfo,
	apperrors.TypeNotFound:   slog.LevelInfo,
	apperrors.TypeInternal:   slog.LevelError,
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"route", c.Path(),
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	level, ok := errorLogLevels[err.Type]
	if !ok {
		level = slog.LevelError
	}
	slog.Log(c.Request().Context(), level, "Request failed", attrs...)
}
