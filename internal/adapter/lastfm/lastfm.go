// Package lastfm adapts the Last.fm user.getrecenttracks API to domain.CanonicalUpdate.
package lastfm

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"github.com/pscheid92/statusfeed/internal/adapter/httpapi"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/pscheid92/statusfeed/internal/platform/reltime"
)

const (
	adapterName    = "lastfm.recenttracks"
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"
)

type response struct {
	Error       int    `json:"error"`
	Message     string `json:"message"`
	RecentTrack *struct {
		Track jsoniter.RawMessage `json:"track"`
	} `json:"recenttracks"`
}

type textField struct {
	Text string `json:"#text"`
}

type image struct {
	Size string `json:"size"`
	Text string `json:"#text"`
}

type track struct {
	Name   string    `json:"name"`
	URL    string    `json:"url"`
	Artist textField `json:"artist"`
	Album  textField `json:"album"`
	Attr   *struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
	Date *struct {
		UTS httpapi.FlexInt `json:"uts"`
	} `json:"date"`
	Image []image `json:"image"`
}

type Adapter struct {
	api     *httpapi.Client
	baseURL string
	apiKey  string
	clock   clockwork.Clock
}

func NewAdapter(baseURL, apiKey string, timeout time.Duration, clock clockwork.Clock) *Adapter {
	return &Adapter{
		api:     httpapi.NewClient(adapterName, timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
		clock:   clock,
	}
}

func (a *Adapter) Name() string { return adapterName }

// FetchUpdate returns the most recent (or currently playing) track of username.
func (a *Adapter) FetchUpdate(ctx context.Context, username string) (domain.CanonicalUpdate, error) {
	query := url.Values{}
	query.Set("method", "user.getrecenttracks")
	query.Set("user", username)
	query.Set("limit", "1")
	query.Set("api_key", a.apiKey)
	query.Set("format", "json")

	var resp response
	if err := a.api.GetJSON(ctx, a.baseURL+"?"+query.Encode(), nil, &resp); err != nil {
		return domain.CanonicalUpdate{}, err
	}
	if resp.Error != 0 {
		return domain.CanonicalUpdate{}, a.api.Transport(0, &apiError{code: resp.Error, message: resp.Message})
	}
	if resp.RecentTrack == nil {
		return domain.CanonicalUpdate{}, a.api.Shape("missing recenttracks")
	}

	t, err := a.firstTrack(resp.RecentTrack.Track)
	if err != nil {
		return domain.CanonicalUpdate{}, err
	}

	return normalize(username, t, a.clock.Now()), nil
}

// firstTrack accepts either a single track object or a list and returns the first track.
func (a *Adapter) firstTrack(raw jsoniter.RawMessage) (track, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return track{}, a.api.Shape("missing recenttracks.track")
	}

	switch raw[0] {
	case '[':
		var tracks []track
		if err := a.api.Decode(raw, &tracks); err != nil {
			return track{}, err
		}
		if len(tracks) == 0 {
			return track{}, a.api.Shape("empty recenttracks.track")
		}
		return tracks[0], nil
	case '{':
		var t track
		if err := a.api.Decode(raw, &t); err != nil {
			return track{}, err
		}
		return t, nil
	default:
		return track{}, a.api.Shape("recenttracks.track is neither object nor list")
	}
}

func normalize(username string, t track, now time.Time) domain.CanonicalUpdate {
	scrobble := &domain.MusicScrobble{
		Username:   username,
		Artist:     t.Artist.Text,
		Album:      t.Album.Text,
		Track:      t.Name,
		URL:        t.URL,
		NowPlaying: t.Attr != nil && t.Attr.NowPlaying != "",
	}

	// Last.fm reports every size with an empty URL when the track has no artwork.
	for _, img := range t.Image {
		if img.Size == "small" && img.Text != "" {
			src := img.Text
			scrobble.Image = &src
			break
		}
	}

	update := domain.CanonicalUpdate{Subject: username, MusicScrobble: scrobble}

	// A track that is still playing has no completion time.
	if !scrobble.NowPlaying && t.Date != nil && t.Date.UTS > 0 {
		playedAt := time.Unix(int64(t.Date.UTS), 0).UTC()
		ago := reltime.Since(playedAt, now)
		update.OccurredAt = &playedAt
		update.RelativeTime = &ago
	}

	return update
}
