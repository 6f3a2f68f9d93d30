package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/statusfeed/internal/adapter/metrics"
	"github.com/pscheid92/statusfeed/internal/adapter/render"
	"github.com/pscheid92/statusfeed/internal/adapter/websocket"
	"github.com/pscheid92/statusfeed/internal/app"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/pscheid92/statusfeed/internal/platform/config"
	"github.com/pscheid92/statusfeed/web"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type stubAdapter struct {
	update domain.CanonicalUpdate
	err    error
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) FetchUpdate(_ context.Context, _ string) (domain.CanonicalUpdate, error) {
	return s.update, s.err
}

type nopPublisher struct{}

func (nopPublisher) PublishChange(context.Context, domain.ChangeEvent) error { return nil }

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:             "development",
		Port:               "0",
		AppURL:             "http://localhost:8080",
		PageTitle:          "Friends",
		MaxViewers:         10,
		MaxViewersPerIP:    10,
		ViewerConnectRate:  100,
		ViewerConnectBurst: 100,
	}
}

// newTestRegistry builds alice (github with data, steam without) and bob
// (lastfm without data) and runs exactly one watcher cycle each.
func newTestRegistry(t *testing.T) *app.Registry {
	t.Helper()

	github, err := app.NewSubscription(domain.ServiceCodeActivity, "octo", time.Minute)
	require.NoError(t, err)
	steam, err := app.NewSubscription(domain.ServiceGamePresence, "7656", time.Minute)
	require.NoError(t, err)
	lastfm, err := app.NewSubscription(domain.ServiceMusicScrobble, "bobfm", time.Minute)
	require.NoError(t, err)

	subscribers := []*app.Subscriber{
		{Name: "alice", Subscriptions: []*app.Subscription{github, steam}},
		{Name: "bob", Subscriptions: []*app.Subscription{lastfm}},
	}
	caps := app.Capabilities{
		Adapters: map[domain.ServiceType]domain.ServiceAdapter{
			domain.ServiceCodeActivity: &stubAdapter{update: domain.CanonicalUpdate{
				Subject:      "octo",
				CodeActivity: &domain.CodeActivity{User: "octo", EventType: "PushEvent", Repo: "x/y"},
			}},
			domain.ServiceGamePresence:  &stubAdapter{err: &domain.TransportError{Adapter: "stub", StatusCode: 500}},
			domain.ServiceMusicScrobble: &stubAdapter{err: &domain.UnexpectedShapeError{Adapter: "stub", Reason: "no tracks"}},
		},
		Templates: map[domain.ServiceType]string{
			domain.ServiceCodeActivity:  "github",
			domain.ServiceGamePresence:  "steam",
			domain.ServiceMusicScrobble: "lastfm",
		},
	}

	renderer, err := render.New(web.TemplateFiles)
	require.NoError(t, err)
	clock := clockwork.NewFakeClock()
	reg, err := app.NewRegistry(subscribers, caps, renderer, nopPublisher{}, clock, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = reg.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Every watcher has finished its first cycle once all are sleeping.
	require.NoError(t, clock.BlockUntilContext(ctx, reg.WatcherCount()))
	return reg
}

type serverOption func(*Server)

func newTestServer(t *testing.T, opts ...serverOption) *Server {
	t.Helper()

	renderer, err := render.New(web.TemplateFiles)
	require.NoError(t, err)

	hub := websocket.NewHub(clockwork.NewRealClock(), 10, metrics.NewWebSocketMetrics(prometheus.NewRegistry()))
	t.Cleanup(hub.Stop)

	cfg := testConfig()
	srv := &Server{
		echo:        echo.New(),
		config:      cfg,
		subscribers: newTestRegistry(t),
		renderer:    renderer,
		hub:         hub,
		upgrader:    newUpgrader(cfg),
		startTime:   time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withHub(hub viewerHub) serverOption {
	return func(s *Server) {
		s.hub = hub
	}
}

func withConfig(cfg *config.Config) serverOption {
	return func(s *Server) {
		s.config = cfg
		s.upgrader = newUpgrader(cfg)
	}
}

func withRejections(r rejectionObserver) serverOption {
	return func(s *Server) {
		s.rejections = r
	}
}

func withRenderer(r pageRenderer) serverOption {
	return func(s *Server) {
		s.renderer = r
	}
}
