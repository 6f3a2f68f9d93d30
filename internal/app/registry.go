package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Capabilities maps each service type to the adapter that fetches it and the
// template that renders it.
type Capabilities struct {
	Adapters  map[domain.ServiceType]domain.ServiceAdapter
	Templates map[domain.ServiceType]string
}

// Registry owns one Watcher per subscription and exposes the subscriber
// list for bootstrap reads.
type Registry struct {
	subscribers []*Subscriber
	watchers    []*Watcher
	started     atomic.Bool
}

// NewRegistry builds a Watcher for every subscription. It fails if a
// subscription names a service without an adapter or template.
func NewRegistry(
	subscribers []*Subscriber,
	caps Capabilities,
	renderer domain.Renderer,
	publisher domain.EventPublisher,
	clock clockwork.Clock,
	observer CycleObserver,
) (*Registry, error) {
	if observer == nil {
		observer = noopObserver{}
	}

	r := &Registry{subscribers: subscribers}
	for _, subscriber := range subscribers {
		for _, sub := range subscriber.Subscriptions {
			adapter, ok := caps.Adapters[sub.Service]
			if !ok {
				return nil, fmt.Errorf("subscriber %q: no adapter for %s: %w", subscriber.Name, sub.Service, domain.ErrUnsupportedService)
			}
			template, ok := caps.Templates[sub.Service]
			if !ok {
				return nil, fmt.Errorf("subscriber %q: no template for %s: %w", subscriber.Name, sub.Service, domain.ErrUnsupportedService)
			}

			r.watchers = append(r.watchers, &Watcher{
				subscriber:   subscriber.Name,
				subscription: sub,
				adapter:      adapter,
				template:     template,
				renderer:     renderer,
				publisher:    publisher,
				clock:        clock,
				observer:     observer,
			})
		}
	}
	return r, nil
}

// Run starts every watcher and blocks until ctx is cancelled and all have returned.
func (r *Registry) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range r.watchers {
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}
	r.started.Store(true)
	return g.Wait()
}

// Started reports whether Run has launched the watchers.
func (r *Registry) Started() bool {
	return r.started.Load()
}

// WatcherCount returns the number of watchers, one per subscription.
func (r *Registry) WatcherCount() int {
	return len(r.watchers)
}

// Subscribers returns subscribers in configuration order.
func (r *Registry) Subscribers() []*Subscriber {
	return r.subscribers
}

// Subscriber looks up a subscriber by display name.
func (r *Registry) Subscriber(name string) (*Subscriber, error) {
	for _, s := range r.subscribers {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, domain.ErrSubscriberNotFound)
}
