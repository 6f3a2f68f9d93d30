package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	UpdatesChannel = "statusfeed:updates"
	SnapshotsKey   = "statusfeed:snapshots"
)

type exportedEvent struct {
	Name      string    `json:"name"`
	Service   string    `json:"service"`
	HTML      string    `json:"html"`
	ChangedAt time.Time `json:"changed_at"`
}

// EventExporter publishes every change event on UpdatesChannel and keeps the
// latest html per subscription in the SnapshotsKey hash. It never reads back.
type EventExporter struct {
	rdb   *goredis.Client
	clock clockwork.Clock
}

func NewEventExporter(rdb *goredis.Client, clock clockwork.Clock) *EventExporter {
	return &EventExporter{rdb: rdb, clock: clock}
}

// SnapshotField is the hash field for one subscription, "<name>:<service>".
func SnapshotField(name string, service domain.ServiceType) string {
	return name + ":" + service.String()
}

func (e *EventExporter) PublishChange(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(exportedEvent{
		Name:      event.SubscriberName,
		Service:   event.Service.String(),
		HTML:      event.HTML,
		ChangedAt: e.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal exported event: %w", err)
	}

	pipe := e.rdb.TxPipeline()
	pipe.HSet(ctx, SnapshotsKey, SnapshotField(event.SubscriberName, event.Service), event.HTML)
	pipe.Publish(ctx, UpdatesChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to export change event: %w", err)
	}
	return nil
}
