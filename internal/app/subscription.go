package app

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pscheid92/statusfeed/internal/domain"
)

// Snapshot is the last successfully rendered output of one subscription.
type Snapshot struct {
	HTML      string
	UpdatedAt time.Time
}

// Subscription binds one account on one service to a poll interval and
// holds the change cache for it. Only the subscription's Watcher writes the cache.
type Subscription struct {
	Service  domain.ServiceType
	Account  string
	Interval time.Duration

	snapshot atomic.Pointer[Snapshot]
}

func NewSubscription(service domain.ServiceType, account string, interval time.Duration) (*Subscription, error) {
	if account == "" {
		return nil, fmt.Errorf("subscription %s: account is required", service)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("subscription %s/%s: interval must be positive, got %s", service, account, interval)
	}
	return &Subscription{Service: service, Account: account, Interval: interval}, nil
}

// CurrentSnapshot returns the cached output. The bool is false until the
// first successful render.
func (s *Subscription) CurrentSnapshot() (Snapshot, bool) {
	snap := s.snapshot.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// compareAndSwap stores html if it differs from the cached output and reports
// whether it did. Single writer: the owning Watcher.
func (s *Subscription) compareAndSwap(html string, at time.Time) bool {
	if current := s.snapshot.Load(); current != nil && current.HTML == html {
		return false
	}
	s.snapshot.Store(&Snapshot{HTML: html, UpdatedAt: at})
	return true
}

// Subscriber is a display name with its ordered subscriptions.
type Subscriber struct {
	Name          string
	Subscriptions []*Subscription
}

// Subscription returns the subscriber's subscription for service, if any.
func (s *Subscriber) Subscription(service domain.ServiceType) (*Subscription, bool) {
	for _, sub := range s.Subscriptions {
		if sub.Service == service {
			return sub, true
		}
	}
	return nil, false
}
