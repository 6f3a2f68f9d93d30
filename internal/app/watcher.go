package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/pscheid92/statusfeed/internal/platform/correlation"
)

// Cycle outcomes, used as metric labels.
const (
	OutcomeFetchFailed  = "fetch_failed"
	OutcomeRenderFailed = "render_failed"
	OutcomeUnchanged    = "unchanged"
	OutcomeChanged      = "changed"
	OutcomePanicked     = "panicked"
)

// CycleObserver records the result of every watcher cycle.
type CycleObserver interface {
	ObserveCycle(service, outcome string, fetchDuration time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveCycle(string, string, time.Duration) {}

// Watcher polls one subscription forever: fetch, render, compare, publish,
// then sleep for the interval measured from the end of the cycle.
type Watcher struct {
	subscriber   string
	subscription *Subscription
	adapter      domain.ServiceAdapter
	template     string
	renderer     domain.Renderer
	publisher    domain.EventPublisher
	clock        clockwork.Clock
	observer     CycleObserver
}

// Run blocks until ctx is cancelled. Failed cycles never stop the loop.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		w.runCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(w.subscription.Interval):
		}
	}
}

func (w *Watcher) runCycle(ctx context.Context) (outcome string) {
	sub := w.subscription
	cycleCtx := correlation.WithID(ctx, correlation.NewID())
	cycleCtx = correlation.WithAttrs(cycleCtx,
		slog.String("subscriber", w.subscriber),
		slog.String("service", sub.Service.String()),
		slog.String("account", sub.Account),
	)

	var fetchDuration time.Duration
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(cycleCtx, "Watcher cycle panicked", "adapter", w.adapter.Name(), "panic", fmt.Sprint(r))
			outcome = OutcomePanicked
		}
		w.observer.ObserveCycle(sub.Service.String(), outcome, fetchDuration)
	}()

	start := w.clock.Now()
	update, err := w.adapter.FetchUpdate(cycleCtx, sub.Account)
	fetchDuration = w.clock.Since(start)
	if err != nil {
		slog.WarnContext(cycleCtx, "Fetch failed", "adapter", w.adapter.Name(), "error", err)
		return OutcomeFetchFailed
	}

	html, err := w.renderer.Render(w.template, update)
	if err != nil {
		slog.WarnContext(cycleCtx, "Render failed", "adapter", w.adapter.Name(), "template", w.template, "error", err)
		return OutcomeRenderFailed
	}

	if !sub.compareAndSwap(html, w.clock.Now()) {
		slog.DebugContext(cycleCtx, "No change")
		return OutcomeUnchanged
	}

	event := domain.ChangeEvent{SubscriberName: w.subscriber, Service: sub.Service, HTML: html}
	if err := w.publisher.PublishChange(cycleCtx, event); err != nil {
		slog.WarnContext(cycleCtx, "Publish failed", "error", err)
	}
	slog.InfoContext(cycleCtx, "Status changed")
	return OutcomeChanged
}
