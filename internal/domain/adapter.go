package domain

import "context"

// ServiceAdapter fetches the latest state of one account and normalizes it.
// Failures are *TransportError or *UnexpectedShapeError.
type ServiceAdapter interface {
	Name() string
	FetchUpdate(ctx context.Context, account string) (CanonicalUpdate, error)
}

// Renderer turns a record into presentation text. It must be deterministic.
type Renderer interface {
	Render(name string, record any) (string, error)
}
