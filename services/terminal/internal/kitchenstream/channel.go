package kitchenstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/appetiteclub/pos/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/gorilla/websocket"
)

const (
	DefaultReconnectInterval = 3 * time.Second
	DefaultMaxAttempts       = 10

	writeWait = 7 * time.Second
)

var (
	ErrNotConnected = errors.New("kitchen channel is not connected")
	ErrClosed       = errors.New("kitchen channel is closed")
)

type State string

const (
	StateIdle         State = "idle"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateDisconnected means the reconnect budget is spent. Only a restart
	// of the channel brings it back.
	StateDisconnected State = "disconnected"
	StateClosed       State = "closed"
)

// Dialer opens the websocket. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (*websocket.Conn, *http.Response, error)
}

// Handler receives what arrives on the kitchen topic. Calls happen on the
// channel's read goroutine.
type Handler interface {
	OnNewOrder(ctx context.Context, evt event.OrderUpdateEvent)
	OnStatusChange(ctx context.Context, evt event.OrderUpdateEvent)
	OnStateChange(state State)
}

type Options struct {
	URL               string
	Token             string
	Origin            string
	ReconnectInterval time.Duration
	MaxAttempts       int
	Dialer            Dialer
}

// Channel keeps one websocket to the kitchen topic open. When the connection
// drops it redials on a fixed interval until MaxAttempts consecutive failures,
// then stays disconnected. Close stops it for good.
type Channel struct {
	opts    Options
	handler Handler
	logger  aqm.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempts int

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChannel(opts Options, handler Handler, logger aqm.Logger) *Channel {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Channel{
		opts:    opts,
		handler: handler,
		logger:  logger.With("component", "kitchen-stream"),
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// SetHandler replaces the handler. Call it before Start.
func (c *Channel) SetHandler(h Handler) {
	c.handler = h
}

// Start connects in the background and never blocks startup.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.logger.Info("starting kitchen stream", "url", c.opts.URL)
	go c.run()
	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	return c.Close()
}

// Close tears the channel down. No reconnect is attempted afterwards.
func (c *Channel) Close() error {
	c.mu.Lock()
	started := c.cancel != nil
	if started {
		c.cancel()
	}
	conn := c.conn
	c.mu.Unlock()

	if !started {
		c.setState(StateClosed)
		return nil
	}
	if conn != nil {
		_ = conn.Close()
	}
	<-c.done
	c.setState(StateClosed)
	return nil
}

// Done is closed once the channel stopped for good, either closed or out of
// reconnect attempts.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Publish sends an envelope to every terminal listening on the topic.
func (c *Channel) Publish(ctx context.Context, evt event.OrderUpdateEvent) error {
	if evt.Origin == "" {
		evt.Origin = c.opts.Origin
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("cannot encode kitchen event: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("cannot publish kitchen event: %w", err)
	}
	return nil
}

func (c *Channel) run() {
	defer close(c.done)

	for {
		err := c.connectAndServe()
		if c.ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()

		if attempts > c.opts.MaxAttempts {
			c.logger.Error("kitchen stream gave up reconnecting", "attempts", attempts-1, "error", err)
			c.setState(StateDisconnected)
			return
		}

		c.logger.Info("kitchen stream reconnecting", "attempt", attempts, "retry_in", c.opts.ReconnectInterval, "error", err)
		c.setState(StateReconnecting)

		timer := time.NewTimer(c.opts.ReconnectInterval)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Channel) connectAndServe() error {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	conn, _, err := c.opts.Dialer.DialContext(c.ctx, c.opts.URL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()

	c.setState(StateConnected)
	c.logger.Info("kitchen stream connected", "url", c.opts.URL)

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	conn.SetReadLimit(1 << 20)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		c.dispatch(raw)
	}
}

func (c *Channel) dispatch(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("kitchen event handler panicked", "panic", fmt.Sprint(r))
		}
	}()

	var evt event.OrderUpdateEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.logger.Error("malformed kitchen message", "error", err, "size", len(raw))
		return
	}
	if err := evt.Validate(); err != nil {
		c.logger.Debug("ignoring kitchen message", "type", evt.Type, "action", evt.Action, "error", err)
		return
	}
	if c.opts.Origin != "" && evt.Origin == c.opts.Origin {
		return
	}
	if c.handler == nil {
		return
	}

	switch evt.Action {
	case event.ActionNewOrder:
		c.handler.OnNewOrder(c.ctx, evt)
	case event.ActionStatusChange:
		c.handler.OnStatusChange(c.ctx, evt)
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	if c.state == s || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	if c.handler != nil {
		c.handler.OnStateChange(s)
	}
}
