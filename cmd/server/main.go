package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/adapter/eventpublisher"
	"github.com/pscheid92/statusfeed/internal/adapter/github"
	"github.com/pscheid92/statusfeed/internal/adapter/httpserver"
	"github.com/pscheid92/statusfeed/internal/adapter/lastfm"
	"github.com/pscheid92/statusfeed/internal/adapter/metrics"
	"github.com/pscheid92/statusfeed/internal/adapter/redis"
	"github.com/pscheid92/statusfeed/internal/adapter/render"
	"github.com/pscheid92/statusfeed/internal/adapter/steam"
	"github.com/pscheid92/statusfeed/internal/adapter/websocket"
	"github.com/pscheid92/statusfeed/internal/app"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/pscheid92/statusfeed/internal/platform/config"
	"github.com/pscheid92/statusfeed/internal/platform/logging"
	"github.com/pscheid92/statusfeed/internal/platform/retry"
	"github.com/pscheid92/statusfeed/internal/platform/version"
	"github.com/pscheid92/statusfeed/web"
	goredis "github.com/redis/go-redis/v9"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	devTemplateDir  = "web"
)

func setupConfig() (*config.Config, *config.SubscriberList) {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	list, err := config.LoadSubscribers(cfg.SubscribersFile)
	if err != nil {
		log.Fatalf("Failed to load subscribers: %v", err)
	}
	if err := cfg.ValidateCredentials(list); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg, list
}

func buildSubscribers(cfg *config.Config, list *config.SubscriberList) ([]*app.Subscriber, error) {
	subscribers := make([]*app.Subscriber, 0, len(list.Users))
	for _, user := range list.Users {
		subscriber := &app.Subscriber{Name: user.Name}
		for _, entry := range user.Services {
			service, err := domain.ParseServiceType(entry.Name)
			if err != nil {
				return nil, fmt.Errorf("user %q: %w", user.Name, err)
			}

			interval := entry.Interval
			if interval == 0 {
				interval = cfg.DefaultInterval(service)
			}

			sub, err := app.NewSubscription(service, entry.Username, interval)
			if err != nil {
				return nil, fmt.Errorf("user %q: %w", user.Name, err)
			}
			subscriber.Subscriptions = append(subscriber.Subscriptions, sub)
		}
		subscribers = append(subscribers, subscriber)
	}
	return subscribers, nil
}

// setupCapabilities builds the adapter and template table. The presence
// handshake runs only when a steam subscription exists and is fatal on failure.
func setupCapabilities(cfg *config.Config, list *config.SubscriberList, clock clockwork.Clock) app.Capabilities {
	steamAdapter := steam.NewAdapter(steam.DefaultBaseURL, cfg.SteamAPIKey, cfg.HTTPTimeout, clock)
	if list.Uses(domain.ServiceGamePresence) {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()
		if err := retry.DoVoid(ctx, startupPolicy(clock, "steam"), classifyStartupError, steamAdapter.Ready); err != nil {
			slog.Error("Steam readiness check failed", "error", err)
			os.Exit(1)
		}
	}

	return app.Capabilities{
		Adapters: map[domain.ServiceType]domain.ServiceAdapter{
			domain.ServiceCodeActivity:  github.NewAdapter(github.DefaultBaseURL, cfg.GitHubToken, cfg.HTTPTimeout, clock),
			domain.ServiceMusicScrobble: lastfm.NewAdapter(lastfm.DefaultBaseURL, cfg.LastfmAPIKey, cfg.HTTPTimeout, clock),
			domain.ServiceGamePresence:  steamAdapter,
		},
		Templates: map[domain.ServiceType]string{
			domain.ServiceCodeActivity:  "github",
			domain.ServiceMusicScrobble: "lastfm",
			domain.ServiceGamePresence:  "steam",
		},
	}
}

func setupRenderer(cfg *config.Config) *render.Renderer {
	renderer, err := render.New(web.TemplateFiles)
	if err != nil {
		slog.Error("Failed to parse templates", "error", err)
		os.Exit(1)
	}
	if !cfg.IsProduction() {
		if info, err := os.Stat(devTemplateDir); err == nil && info.IsDir() {
			slog.Info("Template reload enabled", "dir", devTemplateDir)
			renderer.WithReload(os.DirFS(devTemplateDir))
		}
	}
	return renderer
}

// setupRedis returns nil when REDIS_URL is unset.
func setupRedis(cfg *config.Config, clock clockwork.Clock, hook goredis.Hook) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	client, err := retry.Do(ctx, startupPolicy(clock, "redis"), classifyStartupError, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, hook)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, stopWatchers context.CancelFunc, hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopWatchers()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg, list := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	subscribers, err := buildSubscribers(cfg, list)
	if err != nil {
		slog.Error("Invalid subscriber list", "error", err)
		os.Exit(1)
	}

	caps := setupCapabilities(cfg, list, clock)
	renderer := setupRenderer(cfg)

	registry := metrics.NewRegistry(version.Get())
	wsMetrics := metrics.NewWebSocketMetrics(registry)
	hub := websocket.NewHub(clock, cfg.MaxViewers, wsMetrics)

	var watchers *app.Registry
	healthChecks := []httpserver.HealthCheck{{
		Name: "watchers",
		Check: func(context.Context) error {
			if !watchers.Started() {
				return errors.New("watchers not started")
			}
			return nil
		},
	}}

	var exporter domain.EventPublisher
	redisClient := setupRedis(cfg, clock, redis.NewMetricsHook(metrics.NewRedisMetrics(registry)))
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		exporter = redis.NewEventExporter(redisClient, clock)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	publisher := eventpublisher.New(hub, exporter, metrics.NewExportMetrics(registry))

	watchers, err = app.NewRegistry(subscribers, caps, renderer, publisher, clock, metrics.NewWatcherMetrics(registry))
	if err != nil {
		slog.Error("Failed to build watchers", "error", err)
		os.Exit(1)
	}

	srv := httpserver.NewServer(cfg, watchers, renderer, hub, metrics.Handler(registry), metrics.NewHTTPMetrics(registry), wsMetrics, healthChecks)

	watchCtx, stopWatchers := context.WithCancel(context.Background())
	watchersDone := make(chan struct{})
	go func() {
		defer close(watchersDone)
		if err := watchers.Run(watchCtx); err != nil {
			slog.Error("Watchers stopped with error", "error", err)
		}
	}()
	slog.Info("Watchers started", "subscribers", len(subscribers), "watchers", watchers.WatcherCount())

	done := runGracefulShutdown(srv, stopWatchers, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	<-watchersDone
	slog.Info("Shutdown complete")
}
