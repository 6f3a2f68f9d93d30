package main

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/pscheid92/statusfeed/internal/platform/retry"
)

// startupPolicy covers dependencies that must be reachable before the
// watchers start. Watcher cycles themselves never retry.
func startupPolicy(clock clockwork.Clock, what string) retry.Policy {
	return retry.Policy{
		MaxAttempts:      4,
		InitialBackoff:   500 * time.Millisecond,
		RateLimitBackoff: 5 * time.Second,
		Clock:            clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Startup check failed, retrying", "dependency", what, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
}

// classifyStartupError stops on rejected credentials and backs off longer on 429.
func classifyStartupError(err error) retry.Action {
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		return retry.Retry
	}
	switch transportErr.StatusCode {
	case http.StatusTooManyRequests:
		return retry.After
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return retry.Stop
	default:
		return retry.Retry
	}
}
