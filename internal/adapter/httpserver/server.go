package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/statusfeed/internal/adapter/metrics"
	"github.com/pscheid92/statusfeed/internal/app"
	"github.com/pscheid92/statusfeed/internal/platform/config"
)

type subscriberSource interface {
	Subscribers() []*app.Subscriber
	Subscriber(name string) (*app.Subscriber, error)
}

type pageRenderer interface {
	RenderPage(name string, data any) (string, error)
}

type viewerHub interface {
	ServeViewer(ctx context.Context, conn *websocket.Conn) error
	ClientCount() int
}

type rejectionObserver interface {
	ObserveRejected(reason string)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	subscribers subscriberSource
	renderer    pageRenderer
	hub         viewerHub
	upgrader    websocket.Upgrader

	metricsHandler http.Handler
	httpMetrics    *metrics.HTTPMetrics
	rejections     rejectionObserver
	healthChecks   []HealthCheck
	startTime      time.Time
}

// NewServer wires the dashboard, snapshot API, viewer socket, and health routes.
// metricsHandler and httpMetrics may be nil.
func NewServer(cfg *config.Config, subscribers subscriberSource, renderer pageRenderer, hub viewerHub, metricsHandler http.Handler, httpMetrics *metrics.HTTPMetrics, wsMetrics *metrics.WebSocketMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		subscribers:    subscribers,
		renderer:       renderer,
		hub:            hub,
		upgrader:       newUpgrader(cfg),
		metricsHandler: metricsHandler,
		httpMetrics:    httpMetrics,
		healthChecks:   healthChecks,
		startTime:      time.Now(),
	}

	if wsMetrics != nil {
		srv.rejections = wsMetrics
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
