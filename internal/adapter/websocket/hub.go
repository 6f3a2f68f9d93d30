// Package websocket fans change events out to dashboard viewers over gorilla/websocket.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/statusfeed/internal/adapter/metrics"
	"github.com/pscheid92/statusfeed/internal/domain"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	readLimit      = 4096
	commandBuffer  = 256
)

var (
	ErrTooManyViewers = errors.New("too many viewers")
	ErrHubStopped     = errors.New("hub stopped")
)

// updateMessage is the only server-to-viewer message.
type updateMessage struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Service string `json:"service"`
	HTML    string `json:"html"`
}

type viewer struct {
	id     uuid.UUID
	writer *clientWriter
}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	id           uuid.UUID
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type publishCmd struct {
	baseHubCmd
	data []byte
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns every viewer connection. A single goroutine processes commands,
// so events are fanned out in the order they were published and each
// event is one whole frame per viewer.
type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	viewers     map[*websocket.Conn]viewer
	metrics     *metrics.WebSocketMetrics
	maxViewers  int
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// NewHub starts the hub goroutine. maxViewers limits concurrent connections.
func NewHub(clock clockwork.Clock, maxViewers int, m *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, commandBuffer),
		clock:       clock,
		viewers:     make(map[*websocket.Conn]viewer),
		metrics:     m,
		maxViewers:  maxViewers,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	go h.run()
	return h
}

// Register adds a viewer and starts its writer. The connection is closed
// when the hub is at capacity.
func (h *Hub) Register(conn *websocket.Conn) (uuid.UUID, error) {
	id := uuid.New()
	errCh := make(chan error, 1)
	if err := h.send(registerCmd{id: id, connection: conn, errorChannel: errCh}); err != nil {
		return uuid.Nil, err
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return id, err
	case <-h.done:
		return uuid.Nil, ErrHubStopped
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a viewer and closes its connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	_ = h.send(unregisterCmd{connection: conn})
}

// ClientCount returns the number of connected viewers, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if err := h.send(clientCountCmd{replyChannel: replyCh}); err != nil {
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-h.done:
		return 0
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// PublishChange encodes the event once and queues it for every viewer.
// Delivery is best effort: a viewer that cannot keep up is disconnected.
func (h *Hub) PublishChange(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(updateMessage{
		Type:    "update",
		Name:    event.SubscriberName,
		Service: event.Service.String(),
		HTML:    event.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	if h.stopped() {
		return ErrHubStopped
	}
	select {
	case h.cmdCh <- publishCmd{data: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeViewer registers conn and reads (and discards) viewer frames until
// the connection fails. It always unregisters before returning.
func (h *Hub) ServeViewer(ctx context.Context, conn *websocket.Conn) error {
	id, err := h.Register(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer h.Unregister(conn)

	slog.DebugContext(ctx, "Viewer connected", "viewer_id", id.String())
	conn.SetReadLimit(readLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.DebugContext(ctx, "Viewer disconnected", "viewer_id", id.String(), "error", err)
			return nil
		}
	}
}

// Stop closes every viewer with a close frame and stops the hub goroutine.
// Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		select {
		case h.cmdCh <- stopCmd{}:
		case <-h.done:
			return
		}

		timeout := h.clock.NewTimer(h.stopTimeout)
		defer timeout.Stop()

		select {
		case <-h.done:
			slog.Info("Hub stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Hub stop timeout exceeded", "timeout", h.stopTimeout)
		}
	})
}

func (h *Hub) send(cmd hubCmd) error {
	if h.stopped() {
		return ErrHubStopped
	}
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAll("hub panic")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case publishCmd:
			h.handlePublish(c.data)
		case clientCountCmd:
			c.replyChannel <- len(h.viewers)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.viewers) >= h.maxViewers {
		slog.Warn("Rejecting viewer: max viewers reached", "max_viewers", h.maxViewers)
		h.metrics.ObserveRejected(metrics.RejectCapacity)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many viewers")
		_ = c.connection.WriteControl(websocket.CloseMessage, closeMsg, h.clock.Now().Add(writeDeadline))
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("%w (%d)", ErrTooManyViewers, h.maxViewers)
		return
	}

	h.viewers[c.connection] = viewer{id: c.id, writer: newClientWriter(c.connection, h.clock)}
	h.metrics.ActiveConnections.Set(float64(len(h.viewers)))

	slog.Debug("Viewer registered", "viewer_id", c.id.String(), "total_viewers", len(h.viewers))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	v, exists := h.viewers[conn]
	if !exists {
		return
	}

	v.writer.stop()
	delete(h.viewers, conn)
	h.metrics.ActiveConnections.Set(float64(len(h.viewers)))

	slog.Debug("Viewer unregistered", "viewer_id", v.id.String(), "remaining_viewers", len(h.viewers))
}

func (h *Hub) handlePublish(data []byte) {
	h.metrics.MessagesPublished.Inc()

	var slow []*websocket.Conn
	for conn, v := range h.viewers {
		select {
		case v.writer.sendChannel <- data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow viewer", "viewer_id", h.viewers[conn].id.String())
		h.metrics.SlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	total := len(h.viewers)
	slog.Info("Hub shutting down", "viewers", total)
	h.closeAll("Server shutting down")
	slog.Info("Hub shutdown complete", "disconnected_viewers", total)
}

func (h *Hub) closeAll(reason string) {
	for conn, v := range h.viewers {
		v.writer.stopGraceful(reason)
		delete(h.viewers, conn)
	}
	h.metrics.ActiveConnections.Set(0)
}
