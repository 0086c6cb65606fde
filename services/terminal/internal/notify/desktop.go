package notify

import (
	"context"
	"sync/atomic"
)

// Desktop raises an OS level alert, but only once the user granted
// permission. Without it notifications are skipped quietly.
type Desktop struct {
	sink    Sink
	granted atomic.Bool
}

func NewDesktop(sink Sink) *Desktop {
	return &Desktop{sink: sink}
}

func (d *Desktop) Name() string {
	return "desktop"
}

func (d *Desktop) SetPermission(granted bool) {
	d.granted.Store(granted)
}

func (d *Desktop) Granted() bool {
	return d.granted.Load()
}

func (d *Desktop) Deliver(ctx context.Context, n Notification) error {
	if !d.granted.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.sink.Emit("desktop", n)
	return nil
}
