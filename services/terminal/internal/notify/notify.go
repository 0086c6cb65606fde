package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
)

const DefaultTimeout = 3 * time.Second

const (
	KindNewOrder    = "new_order"
	KindDelivery    = "delivery"
	KindPayment     = "payment"
	KindSyncOffline = "sync_offline"
)

type Notification struct {
	Kind  string    `json:"kind"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

// Channel is one way of telling staff something happened.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// Sink forwards UI side effects (sound, desktop popups) to whatever renders
// the terminal.
type Sink interface {
	Emit(kind string, payload any)
}

// Dispatcher fans a notification out to every channel. Channels run on their
// own goroutine with a timeout; a failing, slow or panicking channel affects
// neither the others nor the caller.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   aqm.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(logger aqm.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		logger:   logger.With("component", "notify"),
	}
}

// Notify returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	// detached from ctx so request cancellation does not cut alerts short
	base := context.WithoutCancel(ctx)
	for _, ch := range d.channels {
		d.wg.Add(1)
		go d.deliver(base, ch, n)
	}
}

// Wait blocks until every in-flight delivery finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, n Notification) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification channel panicked", "channel", ch.Name(), "panic", fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := ch.Deliver(ctx, n); err != nil {
		d.logger.Info("notification channel failed", "channel", ch.Name(), "kind", n.Kind, "error", err)
	}
}
