// Package steam adapts the Steam Web API player summaries to domain.CanonicalUpdate.
package steam

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/adapter/httpapi"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/pscheid92/statusfeed/internal/platform/reltime"
)

const (
	adapterName    = "steam.playersummaries"
	DefaultBaseURL = "https://api.steampowered.com"
)

// personaStates are indexed by the numeric personastate code.
var personaStates = []string{
	"Offline", "Online", "Busy", "Away", "Snooze", "Looking to trade", "Looking to play",
}

var personaStateFlags = map[int]string{
	512:  "Mobile",
	1024: "Big Picture Mode",
}

type player struct {
	PersonaName       string          `json:"personaname"`
	ProfileURL        string          `json:"profileurl"`
	Avatar            string          `json:"avatar"`
	PersonaState      int             `json:"personastate"`
	PersonaStateFlags int             `json:"personastateflags"`
	GameExtraInfo     string          `json:"gameextrainfo"`
	LastLogoff        httpapi.FlexInt `json:"lastlogoff"`
}

type summariesResponse struct {
	Response *struct {
		Players []player `json:"players"`
	} `json:"response"`
}

type apiListResponse struct {
	APIList *struct {
		Interfaces []struct {
			Name string `json:"name"`
		} `json:"interfaces"`
	} `json:"apilist"`
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

// Ready performs the startup handshake: it verifies the API key by listing the
// interfaces available to it. Watchers must not start if this fails.
func (a *Adapter) Ready(ctx context.Context) error {
	query := url.Values{}
	query.Set("key", a.apiKey)
	endpoint := a.baseURL + "/ISteamWebAPIUtil/GetSupportedAPIList/v0001/?" + query.Encode()

	var resp apiListResponse
	if err := a.api.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return fmt.Errorf("steam handshake failed: %w", err)
	}
	if resp.APIList == nil || len(resp.APIList.Interfaces) == 0 {
		return errors.New("steam handshake failed: no API interfaces available for key")
	}
	return nil
}

// FetchUpdate returns the presence of one Steam account (64-bit id).
func (a *Adapter) FetchUpdate(ctx context.Context, steamID string) (domain.CanonicalUpdate, error) {
	query := url.Values{}
	query.Set("key", a.apiKey)
	query.Set("steamids", steamID)
	endpoint := a.baseURL + "/ISteamUser/GetPlayerSummaries/v0002/?" + query.Encode()

	var resp summariesResponse
	if err := a.api.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return domain.CanonicalUpdate{}, err
	}
	if resp.Response == nil || len(resp.Response.Players) == 0 {
		return domain.CanonicalUpdate{}, a.api.Shape("no players in summary")
	}

	return normalize(resp.Response.Players[0], a.clock.Now()), nil
}

func normalize(p player, now time.Time) domain.CanonicalUpdate {
	presence := &domain.GamePresence{
		Username:   p.PersonaName,
		ProfileURL: p.ProfileURL,
		Avatar:     p.Avatar,
		State:      stateLabel(p),
	}

	update := domain.CanonicalUpdate{Subject: p.PersonaName, GamePresence: presence}

	if p.PersonaState == 0 && p.LastLogoff > 0 {
		loggedOff := time.Unix(int64(p.LastLogoff), 0).UTC()
		ago := reltime.Since(loggedOff, now)
		update.OccurredAt = &loggedOff
		update.RelativeTime = &ago
	}

	return update
}

// stateLabel maps presence codes to a label. Unknown codes and flags add no annotation.
func stateLabel(p player) string {
	var label string
	switch {
	case p.GameExtraInfo != "":
		label = "Playing " + p.GameExtraInfo
	case p.PersonaState >= 0 && p.PersonaState < len(personaStates):
		label = personaStates[p.PersonaState]
	}

	if flag, ok := personaStateFlags[p.PersonaStateFlags]; ok {
		if label == "" {
			return "(" + flag + ")"
		}
		label += " (" + flag + ")"
	}
	return label
}
