package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pscheid92/statusfeed/internal/domain"
)

type fetchResult struct {
	update domain.CanonicalUpdate
	err    error
	panics bool
}

// mockAdapter replays results in order and repeats the last one.
type mockAdapter struct {
	name string

	mu      sync.Mutex
	results []fetchResult
	calls   int
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) FetchUpdate(_ context.Context, _ string) (domain.CanonicalUpdate, error) {
	m.mu.Lock()
	idx := min(m.calls, len(m.results)-1)
	m.calls++
	res := m.results[idx]
	m.mu.Unlock()

	if res.panics {
		panic("adapter exploded")
	}
	return res.update, res.err
}

func (m *mockAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func succeeded(subject string) fetchResult {
	return fetchResult{update: domain.CanonicalUpdate{Subject: subject}}
}

func failed(err error) fetchResult {
	return fetchResult{err: err}
}

// subjectRenderer renders the subject, or fails for templates named "broken".
type subjectRenderer struct{}

func (subjectRenderer) Render(name string, record any) (string, error) {
	if name == "broken" {
		return "", &domain.RenderError{Template: name, Err: errors.New("boom")}
	}
	update := record.(domain.CanonicalUpdate)
	return fmt.Sprintf("<%s>%s</%s>", name, update.Subject, name), nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
	err    error
}

func (m *mockPublisher) PublishChange(_ context.Context, event domain.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) getEvents() []domain.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.ChangeEvent, len(m.events))
	copy(result, m.events)
	return result
}

type observedCycle struct {
	service string
	outcome string
}

type mockObserver struct {
	mu     sync.Mutex
	cycles []observedCycle
}

func (m *mockObserver) ObserveCycle(service, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, observedCycle{service: service, outcome: outcome})
}

func (m *mockObserver) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.cycles))
	for _, c := range m.cycles {
		out = append(out, c.outcome)
	}
	return out
}
