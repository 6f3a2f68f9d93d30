package domain

import "fmt"

// ServiceType identifies which external service a subscription polls.
type ServiceType string

const (
	// ServiceCodeActivity is the code-hosting activity feed (GitHub public events).
	ServiceCodeActivity ServiceType = "github"
	// ServiceMusicScrobble is the music-scrobbling service (Last.fm recent tracks).
	ServiceMusicScrobble ServiceType = "lastfm"
	// ServiceGamePresence is the game-platform presence service (Steam player summaries).
	ServiceGamePresence ServiceType = "steam"
)

// ServiceTypes lists every supported service in display order.
var ServiceTypes = []ServiceType{ServiceCodeActivity, ServiceMusicScrobble, ServiceGamePresence}

func (s ServiceType) String() string { return string(s) }

// ParseServiceType maps a configured service name to its ServiceType.
func ParseServiceType(name string) (ServiceType, error) {
	for _, s := range ServiceTypes {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedService, name)
}
