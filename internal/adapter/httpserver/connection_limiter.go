package httpserver

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// ipConnectionLimiter caps concurrent viewer connections per client address.
type ipConnectionLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func newIPConnectionLimiter(maxPer int) *ipConnectionLimiter {
	return &ipConnectionLimiter{
		ips:    make(map[string]int),
		maxPer: maxPer,
	}
}

// acquire reports false when ip already holds maxPer slots.
func (l *ipConnectionLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipConnectionLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 0 {
		l.ips[ip] = count - 1
		if l.ips[ip] == 0 {
			delete(l.ips, ip)
		}
	}
}

func (l *ipConnectionLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}

// middleware holds a slot for the whole request, which for /ws is the viewer's lifetime.
func (l *ipConnectionLimiter) middleware(onDeny denyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.acquire(ip) {
				slog.InfoContext(c.Request().Context(), "Too many connections from address", "remote_ip", ip, "max_per_ip", l.maxPer)
				if onDeny != nil {
					onDeny(c)
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too many connections",
				})
			}
			defer l.release(ip)
			return next(c)
		}
	}
}
