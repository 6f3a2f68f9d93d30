package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pscheid92/statusfeed/internal/domain"
	"gopkg.in/yaml.v3"
)

// SubscriberList is the on-disk list of monitored users.
type SubscriberList struct {
	Users []UserEntry `yaml:"users"`
}

type UserEntry struct {
	Name     string         `yaml:"name"`
	Services []ServiceEntry `yaml:"services"`
}

type ServiceEntry struct {
	Name     string        `yaml:"name"`
	Username string        `yaml:"username"`
	Interval time.Duration `yaml:"interval"`
}

// LoadSubscribers reads and validates the subscriber list at path.
func LoadSubscribers(path string) (*SubscriberList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscribers file: %w", err)
	}
	return ParseSubscribers(data)
}

// ParseSubscribers decodes a YAML subscriber list and validates it.
func ParseSubscribers(data []byte) (*SubscriberList, error) {
	var list SubscriberList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse subscribers file: %w", err)
	}
	if err := list.validate(); err != nil {
		return nil, err
	}
	return &list, nil
}

func (l *SubscriberList) validate() error {
	if len(l.Users) == 0 {
		return errors.New("subscribers file lists no users")
	}

	seen := make(map[string]struct{}, len(l.Users))
	for i, u := range l.Users {
		if u.Name == "" {
			return fmt.Errorf("users[%d]: name is required", i)
		}
		if _, dup := seen[u.Name]; dup {
			return fmt.Errorf("users[%d]: duplicate name %q", i, u.Name)
		}
		seen[u.Name] = struct{}{}

		// One subscription per service: the pair names the dashboard element and the export field.
		services := make(map[string]struct{}, len(u.Services))
		for j, s := range u.Services {
			if _, err := domain.ParseServiceType(s.Name); err != nil {
				return fmt.Errorf("users[%d].services[%d]: %w", i, j, err)
			}
			if _, dup := services[s.Name]; dup {
				return fmt.Errorf("users[%d].services[%d]: duplicate service %q for user %q", i, j, s.Name, u.Name)
			}
			services[s.Name] = struct{}{}
			if s.Username == "" {
				return fmt.Errorf("users[%d].services[%d]: username is required", i, j)
			}
			if s.Interval < 0 {
				return fmt.Errorf("users[%d].services[%d]: interval must be positive", i, j)
			}
		}
	}
	return nil
}

// Uses reports whether any user subscribes to the given service.
func (l *SubscriberList) Uses(service domain.ServiceType) bool {
	for _, u := range l.Users {
		for _, s := range u.Services {
			if s.Name == string(service) {
				return true
			}
		}
	}
	return false
}

// DefaultInterval returns the configured poll interval for a service.
func (c *Config) DefaultInterval(service domain.ServiceType) time.Duration {
	switch service {
	case domain.ServiceCodeActivity:
		return c.GitHubInterval
	case domain.ServiceMusicScrobble:
		return c.LastfmInterval
	case domain.ServiceGamePresence:
		return c.SteamInterval
	default:
		return 0
	}
}

// ValidateCredentials checks that every service in use has its API key.
func (c *Config) ValidateCredentials(list *SubscriberList) error {
	if list.Uses(domain.ServiceMusicScrobble) && c.LastfmAPIKey == "" {
		return errors.New("LASTFM_API_KEY is required when a lastfm subscription is configured")
	}
	if list.Uses(domain.ServiceGamePresence) && c.SteamAPIKey == "" {
		return errors.New("STEAM_API_KEY is required when a steam subscription is configured")
	}
	return nil
}
