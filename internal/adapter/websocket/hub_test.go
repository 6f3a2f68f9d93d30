package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/statusfeed/internal/adapter/metrics"
	"github.com/pscheid92/statusfeed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, maxViewers int) (*Hub, *metrics.WebSocketMetrics) {
	t.Helper()
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	hub := NewHub(clockwork.NewRealClock(), maxViewers, m)
	t.Cleanup(hub.Stop)
	return hub, m
}

// connectViewer serves one viewer through hub.ServeViewer and returns the client side.
func connectViewer(t *testing.T, hub *Hub) *ws.Conn {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.ServeViewer(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })
	return serverConn, clientConn
}

func waitForClientCount(hub *Hub, expected int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == expected {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func readUpdate(t *testing.T, client *ws.Conn) updateMessage {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, ws.TextMessage, msgType)

	var msg updateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_PublishReachesEveryViewer(t *testing.T) {
	hub, m := newTestHub(t, 10)
	c1 := connectViewer(t, hub)
	c2 := connectViewer(t, hub)
	require.True(t, waitForClientCount(hub, 2))

	event := domain.ChangeEvent{SubscriberName: "alice", Service: domain.ServiceGamePresence, HTML: `<div class="card">Online</div>`}
	require.NoError(t, hub.PublishChange(context.Background(), event))

	want := updateMessage{Type: "update", Name: "alice", Service: "steam", HTML: `<div class="card">Online</div>`}
	assert.Equal(t, want, readUpdate(t, c1))
	assert.Equal(t, want, readUpdate(t, c2))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPublished))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveConnections))
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	hub, _ := newTestHub(t, 10)
	client := connectViewer(t, hub)
	require.True(t, waitForClientCount(hub, 1))

	htmls := []string{"one", "two", "three", "four", "five"}
	for _, html := range htmls {
		require.NoError(t, hub.PublishChange(context.Background(),
			domain.ChangeEvent{SubscriberName: "alice", Service: domain.ServiceCodeActivity, HTML: html}))
	}

	for _, html := range htmls {
		assert.Equal(t, html, readUpdate(t, client).HTML)
	}
}

func TestHub_PublishWithoutViewers(t *testing.T) {
	hub, m := newTestHub(t, 10)

	err := hub.PublishChange(context.Background(), domain.ChangeEvent{SubscriberName: "alice", Service: domain.ServiceCodeActivity})

	require.NoError(t, err)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.MessagesPublished) == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_ViewerDisconnectUnregisters(t *testing.T) {
	hub, m := newTestHub(t, 10)
	client := connectViewer(t, hub)
	require.True(t, waitForClientCount(hub, 1))

	require.NoError(t, client.Close())

	assert.True(t, waitForClientCount(hub, 0))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveConnections))
}

func TestHub_MaxViewers(t *testing.T) {
	hub, m := newTestHub(t, 1)
	connectViewer(t, hub)
	require.True(t, waitForClientCount(hub, 1))

	rejected := connectViewer(t, hub)
	require.NoError(t, rejected.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := rejected.ReadMessage()

	var closeErr *ws.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ws.CloseTryAgainLater, closeErr.Code)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues(metrics.RejectCapacity)))
}

func TestHub_SlowViewerIsEvicted(t *testing.T) {
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	hub := &Hub{viewers: make(map[*ws.Conn]viewer), metrics: m, clock: clockwork.NewRealClock()}
	server, _ := newTestConnPair(t)

	// A writer with a full buffer and no run goroutine never drains.
	stuck := &clientWriter{connection: server, sendChannel: make(chan []byte, 1), doneChannel: make(chan struct{})}
	stuck.sendChannel <- []byte("pending")
	hub.viewers[server] = viewer{writer: stuck}

	hub.handlePublish([]byte("next"))

	assert.Empty(t, hub.viewers)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SlowClientsEvicted))
}

func TestHub_StopSendsCloseFrame(t *testing.T) {
	hub, _ := newTestHub(t, 10)
	client := connectViewer(t, hub)
	require.True(t, waitForClientCount(hub, 1))

	hub.Stop()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	var closeErr *ws.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ws.CloseNormalClosure, closeErr.Code)
	assert.Contains(t, closeErr.Text, "shutting down")
}

func TestHub_StopIsIdempotentAndRejectsLaterCalls(t *testing.T) {
	hub, _ := newTestHub(t, 10)

	hub.Stop()
	hub.Stop()

	err := hub.PublishChange(context.Background(), domain.ChangeEvent{SubscriberName: "alice", Service: domain.ServiceCodeActivity})
	assert.ErrorIs(t, err, ErrHubStopped)
	assert.Equal(t, 0, hub.ClientCount())

	server, _ := newTestConnPair(t)
	_, err = hub.Register(server)
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestClientWriter_StopIdempotent(t *testing.T) {
	server, _ := newTestConnPair(t)
	cw := newClientWriter(server, clockwork.NewRealClock())

	cw.stop()
	cw.stop()
	cw.stopGraceful("again")
}

func TestClientWriter_SendsPing(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	server, client := newTestConnPair(t)
	cw := newClientWriter(server, clock)
	t.Cleanup(cw.stop)

	pinged := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		pinged <- struct{}{}
		return nil
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(pingInterval)

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("expected ping after ping interval")
	}
}

func TestHub_StopReturnsWhenLoopAlreadyExited(t *testing.T) {
	// No run goroutine: the loop has exited and nothing drains the full queue.
	hub := &Hub{
		cmdCh:       make(chan hubCmd, 1),
		clock:       clockwork.NewRealClock(),
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	hub.cmdCh <- publishCmd{}
	close(hub.done)

	stopped := make(chan struct{})
	go func() {
		hub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a full command queue")
	}
}
