// Package github adapts the GitHub public events API to domain.CanonicalUpdate.
package github

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/adapter/httpapi"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/pscheid92/statusfeed/internal/platform/reltime"
)

const (
	adapterName    = "github.events"
	DefaultBaseURL = "https://api.github.com"
)

type event struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
	Actor struct {
		AvatarURL string `json:"avatar_url"`
	} `json:"actor"`
	Payload map[string]any `json:"payload"`
}

type Adapter struct {
	api     *httpapi.Client
	baseURL string
	token   string
	clock   clockwork.Clock
}

// NewAdapter creates a GitHub adapter. token may be empty for unauthenticated access.
func NewAdapter(baseURL, token string, timeout time.Duration, clock clockwork.Clock) *Adapter {
	return &Adapter{
		api:     httpapi.NewClient(adapterName, timeout),
		baseURL: baseURL,
		token:   token,
		clock:   clock,
	}
}

func (a *Adapter) Name() string { return adapterName }

// FetchUpdate returns the newest public event of username.
func (a *Adapter) FetchUpdate(ctx context.Context, username string) (domain.CanonicalUpdate, error) {
	endpoint := fmt.Sprintf("%s/users/%s/events/public", a.baseURL, url.PathEscape(username))
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if a.token != "" {
		headers["Authorization"] = "Bearer " + a.token
	}

	var events []event
	if err := a.api.GetJSON(ctx, endpoint, headers, &events); err != nil {
		return domain.CanonicalUpdate{}, err
	}
	if len(events) == 0 {
		return domain.CanonicalUpdate{}, a.api.Shape("no public events")
	}

	return a.normalize(username, events[0], a.clock.Now())
}

func (a *Adapter) normalize(username string, ev event, now time.Time) (domain.CanonicalUpdate, error) {
	if ev.Type == "" {
		return domain.CanonicalUpdate{}, a.api.Shape("event without type")
	}

	createdAt, err := time.Parse(time.RFC3339, ev.CreatedAt)
	if err != nil {
		return domain.CanonicalUpdate{}, a.api.Shape("invalid created_at %q", ev.CreatedAt)
	}
	ago := reltime.Since(createdAt, now)

	return domain.CanonicalUpdate{
		Subject:      username,
		OccurredAt:   &createdAt,
		RelativeTime: &ago,
		CodeActivity: &domain.CodeActivity{
			User:      username,
			Avatar:    ev.Actor.AvatarURL,
			EventType: ev.Type,
			Repo:      ev.Repo.Name,
			Payload:   ev.Payload,
		},
	}, nil
}
