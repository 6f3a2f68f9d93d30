package httpserver

import (
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/statusfeed/internal/adapter/metrics"
	wsadapter "github.com/pscheid92/statusfeed/internal/adapter/websocket"
	"github.com/pscheid92/statusfeed/internal/platform/config"
)

func newUpgrader(cfg *config.Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     wsadapter.NewCheckOrigin(cfg.AppURL, !cfg.IsProduction()),
	}
}

func (s *Server) registerViewerRoutes() {
	rateLimit := newRateLimiter(s.config.ViewerConnectRate, s.config.ViewerConnectBurst, s.rejectWith(metrics.RejectRate))
	perIP := newIPConnectionLimiter(s.config.MaxViewersPerIP)
	s.echo.GET("/ws", s.handleViewerSocket, rateLimit, perIP.middleware(s.rejectWith(metrics.RejectPerIP)))
}

func (s *Server) rejectWith(reason string) denyFunc {
	return func(echo.Context) {
		if s.rejections != nil {
			s.rejections.ObserveRejected(reason)
		}
	}
}

// handleViewerSocket upgrades the request and blocks until the viewer leaves.
// After the upgrade no HTTP error can be written, so failures are only logged.
func (s *Server) handleViewerSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.DebugContext(c.Request().Context(), "Viewer upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.ServeViewer(c.Request().Context(), conn); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, wsadapter.ErrTooManyViewers) {
			level = slog.LevelInfo
		}
		slog.Log(c.Request().Context(), level, "Viewer rejected", "error", err)
	}
	return nil
}
