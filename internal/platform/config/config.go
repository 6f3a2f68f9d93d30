package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	PageTitle string `env:"PAGE_TITLE" default:"Status"`

	SubscribersFile string `env:"SUBSCRIBERS_FILE" default:"subscribers.yaml"`

	GitHubToken  string `env:"GITHUB_TOKEN"`
	LastfmAPIKey string `env:"LASTFM_API_KEY"`
	SteamAPIKey  string `env:"STEAM_API_KEY"`

	GitHubInterval time.Duration `env:"GITHUB_INTERVAL" default:"60s"`
	LastfmInterval time.Duration `env:"LASTFM_INTERVAL" default:"10s"`
	SteamInterval  time.Duration `env:"STEAM_INTERVAL" default:"30s"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" default:"10s"`

	RedisURL string `env:"REDIS_URL"`

	MaxViewers         int     `env:"MAX_VIEWERS" default:"1000"`
	MaxViewersPerIP    int     `env:"MAX_VIEWERS_PER_IP" default:"20"`
	ViewerConnectRate  float64 `env:"VIEWER_CONNECT_RATE" default:"1"`
	ViewerConnectBurst int     `env:"VIEWER_CONNECT_BURST" default:"5"`
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads the environment (and an optional .env file) into a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SubscribersFile == "" {
		return errors.New("SUBSCRIBERS_FILE is required")
	}

	intervals := map[string]time.Duration{
		"GITHUB_INTERVAL": cfg.GitHubInterval,
		"LASTFM_INTERVAL": cfg.LastfmInterval,
		"STEAM_INTERVAL":  cfg.SteamInterval,
		"HTTP_TIMEOUT":    cfg.HTTPTimeout,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.MaxViewers <= 0 {
		return errors.New("MAX_VIEWERS must be positive")
	}
	if cfg.MaxViewersPerIP <= 0 {
		return errors.New("MAX_VIEWERS_PER_IP must be positive")
	}
	if cfg.ViewerConnectRate <= 0 || cfg.ViewerConnectBurst <= 0 {
		return errors.New("VIEWER_CONNECT_RATE and VIEWER_CONNECT_BURST must be positive")
	}

	if u, err := url.Parse(cfg.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_URL must be an absolute URL, got %q", cfg.AppURL)
	}

	return nil
}
