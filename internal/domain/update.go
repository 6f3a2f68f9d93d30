package domain

import "time"

// CanonicalUpdate is the normalized record a ServiceAdapter produces on a successful fetch.
// Exactly one of the payload pointers is set. Optional fields are decided once by the
// adapter so renderers never inspect the raw response shape.
type CanonicalUpdate struct {
	Subject      string
	OccurredAt   *time.Time
	RelativeTime *string

	CodeActivity  *CodeActivity
	MusicScrobble *MusicScrobble
	GamePresence  *GamePresence
}

// CodeActivity is the newest public event of a code-hosting account.
type CodeActivity struct {
	User      string
	Avatar    string
	EventType string
	Repo      string
	Payload   map[string]any
}

// MusicScrobble is the most recent track of a scrobbling account.
type MusicScrobble struct {
	Username   string
	Artist     string
	Album      string
	Track      string
	URL        string
	NowPlaying bool
	Image      *string
}

// GamePresence is the current presence of a game-platform account.
type GamePresence struct {
	Username   string
	ProfileURL string
	Avatar     string
	State      string
}
