package kitchenstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/appetiteclub/pos/pkg/event"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu         sync.Mutex
	newOrders  []event.OrderUpdateEvent
	changes    []event.OrderUpdateEvent
	states     []State
	panicOnNew bool
}

func (h *recordingHandler) OnNewOrder(ctx context.Context, evt event.OrderUpdateEvent) {
	h.mu.Lock()
	h.newOrders = append(h.newOrders, evt)
	h.mu.Unlock()
	if h.panicOnNew {
		panic("boom")
	}
}

func (h *recordingHandler) OnStatusChange(ctx context.Context, evt event.OrderUpdateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes = append(h.changes, evt)
}

func (h *recordingHandler) OnStateChange(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, s)
}

func (h *recordingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.newOrders), len(h.changes)
}

func (h *recordingHandler) sawState(s State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, got := range h.states {
		if got == s {
			return true
		}
	}
	return false
}

type failingDialer struct {
	calls atomic.Int32
}

func (d *failingDialer) DialContext(ctx context.Context, url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	d.calls.Add(1)
	return nil, nil, errors.New("connection refused")
}

func waitDone(t *testing.T, c *Channel) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not stop")
	}
}

func TestChannelStopsAfterMaxReconnects(t *testing.T) {
	dialer := &failingDialer{}
	h := &recordingHandler{}
	c := NewChannel(Options{
		URL:               "ws://kitchen.invalid/ws/kitchen",
		ReconnectInterval: time.Millisecond,
		MaxAttempts:       10,
		Dialer:            dialer,
	}, h, nil)

	require.NoError(t, c.Start(context.Background()))
	waitDone(t, c)

	// initial dial plus ten reconnect attempts
	assert.EqualValues(t, 11, dialer.calls.Load())
	assert.False(t, c.Connected())
	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, h.sawState(StateDisconnected))

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 11, dialer.calls.Load(), "no reconnect after giving up")
}

func TestChannelCloseSuppressesReconnect(t *testing.T) {
	dialer := &failingDialer{}
	c := NewChannel(Options{
		URL:               "ws://kitchen.invalid/ws/kitchen",
		ReconnectInterval: time.Hour,
		Dialer:            dialer,
	}, &recordingHandler{}, nil)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return dialer.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	waitDone(t, c)

	assert.EqualValues(t, 1, dialer.calls.Load())
	assert.Equal(t, StateClosed, c.State())
}

func TestChannelPublishWhileDisconnected(t *testing.T) {
	c := NewChannel(Options{URL: "ws://kitchen.invalid"}, nil, nil)

	err := c.Publish(context.Background(), event.NewOrderUpdate(event.ActionNewOrder))
	assert.ErrorIs(t, err, ErrNotConnected)
}

type kitchenServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]byte
	auth     []string
}

func newKitchenServer(t *testing.T) *kitchenServer {
	ks := &kitchenServer{}
	ks.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ks.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ks.mu.Lock()
		ks.conns = append(ks.conns, conn)
		ks.auth = append(ks.auth, r.Header.Get("Authorization"))
		ks.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ks.mu.Lock()
			ks.received = append(ks.received, raw)
			ks.mu.Unlock()
		}
	}))
	t.Cleanup(ks.Close)
	return ks
}

func (ks *kitchenServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ks.URL, "http")
}

func (ks *kitchenServer) connections() int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return len(ks.conns)
}

func (ks *kitchenServer) send(t *testing.T, raw []byte) {
	t.Helper()
	ks.mu.Lock()
	conn := ks.conns[len(ks.conns)-1]
	ks.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func (ks *kitchenServer) dropLatest() {
	ks.mu.Lock()
	conn := ks.conns[len(ks.conns)-1]
	ks.mu.Unlock()
	_ = conn.Close()
}

func (ks *kitchenServer) waitConnected(t *testing.T, c *Channel, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Connected() && ks.connections() == n
	}, 2*time.Second, 5*time.Millisecond)
}

func envelope(t *testing.T, action, origin string) []byte {
	t.Helper()
	evt := event.NewOrderUpdate(action)
	evt.OrderID = "order-1"
	evt.Origin = origin
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return raw
}

func TestChannelDispatchesEnvelopes(t *testing.T) {
	ks := newKitchenServer(t)
	h := &recordingHandler{}
	c := NewChannel(Options{URL: ks.wsURL(), Token: "secret", Origin: "term-1", ReconnectInterval: 10 * time.Millisecond}, h, nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	ks.waitConnected(t, c, 1)

	ks.send(t, []byte("{not json"))
	ks.send(t, []byte(`{"type":"menu_update","action":"new_order"}`))
	ks.send(t, envelope(t, event.ActionNewOrder, "term-2"))
	ks.send(t, envelope(t, event.ActionNewOrder, "term-1"))
	ks.send(t, envelope(t, event.ActionStatusChange, "pos"))

	require.Eventually(t, func() bool {
		n, s := h.counts()
		return n == 1 && s == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.Connected(), "malformed payloads must not drop the connection")

	ks.mu.Lock()
	assert.Equal(t, "Bearer secret", ks.auth[0])
	ks.mu.Unlock()
}

func TestChannelHandlerPanicIsContained(t *testing.T) {
	ks := newKitchenServer(t)
	h := &recordingHandler{panicOnNew: true}
	c := NewChannel(Options{URL: ks.wsURL()}, h, nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	ks.waitConnected(t, c, 1)

	ks.send(t, envelope(t, event.ActionNewOrder, ""))
	ks.send(t, envelope(t, event.ActionStatusChange, ""))

	require.Eventually(t, func() bool {
		_, s := h.counts()
		return s == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.Connected())
}

func TestChannelReconnectsAndResetsAttempts(t *testing.T) {
	ks := newKitchenServer(t)
	h := &recordingHandler{}
	c := NewChannel(Options{URL: ks.wsURL(), ReconnectInterval: 10 * time.Millisecond}, h, nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	ks.waitConnected(t, c, 1)

	ks.dropLatest()

	ks.waitConnected(t, c, 2)
	assert.Equal(t, 0, c.Attempts())
	assert.True(t, h.sawState(StateReconnecting))
}

func TestChannelPublish(t *testing.T) {
	ks := newKitchenServer(t)
	c := NewChannel(Options{URL: ks.wsURL(), Origin: "term-1"}, nil, nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	ks.waitConnected(t, c, 1)

	evt := event.NewOrderUpdate(event.ActionNewOrder)
	evt.OrderID = "order-7"
	require.NoError(t, c.Publish(context.Background(), evt))

	require.Eventually(t, func() bool {
		ks.mu.Lock()
		defer ks.mu.Unlock()
		return len(ks.received) == 1
	}, 2*time.Second, 5*time.Millisecond)

	var got event.OrderUpdateEvent
	ks.mu.Lock()
	require.NoError(t, json.Unmarshal(ks.received[0], &got))
	ks.mu.Unlock()
	assert.Equal(t, "order-7", got.OrderID)
	assert.Equal(t, "term-1", got.Origin)
}
