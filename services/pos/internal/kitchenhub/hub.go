package kitchenhub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/appetiteclub/pos/pkg"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	Path = "/ws/kitchen"

	writeWait    = 7 * time.Second
	readWait     = 70 * time.Second
	pingInterval = 25 * time.Second
	maxMessage   = 1 << 20
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeText(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
}

func (c *client) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

type Deps struct {
	// Publisher fans terminal envelopes out to every backend replica. Without
	// it envelopes are only broadcast to this replica's clients.
	Publisher  events.Publisher
	Subscriber events.Subscriber
	Token      string
}

// Hub holds the websocket of every connected terminal and relays kitchen
// envelopes between them.
type Hub struct {
	publisher  events.Publisher
	subscriber events.Subscriber
	token      string
	logger     aqm.Logger
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

func New(deps Deps, logger aqm.Logger) *Hub {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Hub{
		publisher:  deps.Publisher,
		subscriber: deps.Subscriber,
		token:      deps.Token,
		logger:     logger.With("component", "kitchenhub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
}

func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get(Path, h.Serve)
}

// Serve upgrades a terminal connection and keeps it until either side goes
// away or the hub stops.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	if !pkg.BearerMatches(r, h.token) {
		aqm.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.add(c)
	defer func() {
		h.remove(c)
		_ = c.close()
	}()

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	ctx := context.WithoutCancel(r.Context())
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.receive(ctx, raw)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// receive validates an envelope sent by a terminal and forwards it.
// Malformed payloads are dropped.
func (h *Hub) receive(ctx context.Context, raw []byte) {
	if len(raw) == 0 {
		return
	}

	var evt event.OrderUpdateEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		h.logger.Debug("dropping malformed kitchen message", "error", err)
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("dropping kitchen message", "type", evt.Type, "action", evt.Action, "error", err)
		return
	}

	if h.publisher != nil {
		err := h.publisher.Publish(ctx, event.KitchenTopic, raw)
		if err == nil {
			return
		}
		h.logger.Error("cannot publish kitchen envelope, broadcasting locally", "error", err)
	}
	h.Broadcast(raw)
}

// Broadcast writes raw to every connected terminal and drops the ones that
// cannot be written to.
func (h *Hub) Broadcast(raw []byte) {
	for _, c := range h.list() {
		if err := c.writeText(raw); err != nil {
			h.remove(c)
			_ = c.close()
		}
	}
}

func (h *Hub) BroadcastEvent(evt event.OrderUpdateEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	h.Broadcast(raw)
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) list() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}
