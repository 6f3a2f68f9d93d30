package app

import (
	"testing"
	"time"

	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubscription_Validation(t *testing.T) {
	_, err := NewSubscription(domain.ServiceGamePresence, "", time.Second)
	assert.Error(t, err)

	_, err = NewSubscription(domain.ServiceGamePresence, "7656", 0)
	assert.Error(t, err)

	sub, err := NewSubscription(domain.ServiceGamePresence, "7656", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, sub.Interval)
}

func TestSubscription_NoDataBeforeFirstRender(t *testing.T) {
	sub, err := NewSubscription(domain.ServiceMusicScrobble, "bobfm", time.Second)
	require.NoError(t, err)

	snap, ok := sub.CurrentSnapshot()

	assert.False(t, ok)
	assert.Empty(t, snap.HTML)
}

func TestSubscription_CompareAndSwap(t *testing.T) {
	sub, err := NewSubscription(domain.ServiceMusicScrobble, "bobfm", time.Second)
	require.NoError(t, err)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, sub.compareAndSwap("a", t0))
	assert.False(t, sub.compareAndSwap("a", t0.Add(time.Minute)))

	snap, ok := sub.CurrentSnapshot()
	require.True(t, ok)
	assert.Equal(t, t0, snap.UpdatedAt, "unchanged output keeps the original timestamp")

	assert.True(t, sub.compareAndSwap("b", t0.Add(2*time.Minute)))
	snap, _ = sub.CurrentSnapshot()
	assert.Equal(t, "b", snap.HTML)
}

func TestSubscriber_Subscription(t *testing.T) {
	gh, _ := NewSubscription(domain.ServiceCodeActivity, "octo", time.Second)
	s := &Subscriber{Name: "alice", Subscriptions: []*Subscription{gh}}

	got, ok := s.Subscription(domain.ServiceCodeActivity)
	assert.True(t, ok)
	assert.Same(t, gh, got)

	_, ok = s.Subscription(domain.ServiceGamePresence)
	assert.False(t, ok)
}
