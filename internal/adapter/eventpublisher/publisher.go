package eventpublisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/statusfeed/internal/adapter/metrics"
	"github.com/pscheid92/statusfeed/internal/domain"
)

const defaultExportTimeout = 2 * time.Second

// EventPublisher implements domain.EventPublisher by composing the viewer
// hub with an optional exporter. Viewers are served first; the export runs
// afterwards under its own deadline and its failures are logged, never returned.
type EventPublisher struct {
	viewers       domain.EventPublisher
	exporter      domain.EventPublisher
	metrics       *metrics.ExportMetrics
	exportTimeout time.Duration
}

// New composes viewers with exporter. exporter and m may be nil.
func New(viewers domain.EventPublisher, exporter domain.EventPublisher, m *metrics.ExportMetrics) *EventPublisher {
	return &EventPublisher{viewers: viewers, exporter: exporter, metrics: m, exportTimeout: defaultExportTimeout}
}

func (ep *EventPublisher) PublishChange(ctx context.Context, event domain.ChangeEvent) error {
	viewerErr := ep.viewers.PublishChange(ctx, event)

	if ep.exporter != nil {
		ep.export(ctx, event)
	}

	if viewerErr != nil {
		return fmt.Errorf("publish to viewers: %w", viewerErr)
	}
	return nil
}

func (ep *EventPublisher) export(ctx context.Context, event domain.ChangeEvent) {
	ctx, cancel := context.WithTimeout(ctx, ep.exportTimeout)
	defer cancel()

	result := "ok"
	if err := ep.exporter.PublishChange(ctx, event); err != nil {
		result = "error"
		slog.WarnContext(ctx, "Failed to export change event", "error", err)
	}
	if ep.metrics != nil {
		ep.metrics.Exported.WithLabelValues(result).Inc()
	}
}
