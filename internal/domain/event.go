package domain

import "context"

// ChangeEvent announces that a subscription's rendered output changed.
type ChangeEvent struct {
	SubscriberName string
	Service        ServiceType
	HTML           string
}

// EventPublisher delivers change events. Implementations must not block
// the caller on slow consumers.
type EventPublisher interface {
	PublishChange(ctx context.Context, event ChangeEvent) error
}
