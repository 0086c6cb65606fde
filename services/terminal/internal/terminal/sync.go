package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/terminal/internal/kitchenstream"
	"github.com/appetiteclub/pos/services/terminal/internal/notify"
)

// OnNewOrder chimes and refreshes the views that show the order.
func (t *Terminal) OnNewOrder(ctx context.Context, evt event.OrderUpdateEvent) {
	body := fmt.Sprintf("Order #%d", evt.OrderNumber)
	if evt.TableID != "" {
		if tbl, ok := t.store.Snapshot().Floor.Find(evt.TableID); ok {
			body = fmt.Sprintf("Order #%d for %s", evt.OrderNumber, tbl.Name)
		}
	}
	t.notify(ctx, notify.Notification{
		Kind:  notify.KindNewOrder,
		Title: "New order",
		Body:  body,
		At:    time.Now(),
	})
	t.refresh(ctx)
}

func (t *Terminal) OnStatusChange(ctx context.Context, evt event.OrderUpdateEvent) {
	t.logger.Debug("order status changed elsewhere", "order_id", evt.OrderID, "status", evt.Status)
	t.refresh(ctx)
}

func (t *Terminal) OnStateChange(state kitchenstream.State) {
	prev := t.store.Snapshot().Sync
	t.store.Update(func(s State) State {
		s.Sync = state
		return s
	})
	if state == kitchenstream.StateDisconnected && prev != kitchenstream.StateDisconnected {
		t.store.Error("Live updates are offline, the floor refreshes by polling only")
		t.notify(context.Background(), notify.Notification{
			Kind:  notify.KindSyncOffline,
			Title: "Live updates offline",
			Body:  "Changes from other terminals may show up late",
			At:    time.Now(),
		})
	}
}

// refresh wakes the floor and kitchen poll tasks, or reloads inline when no
// scheduler runs.
func (t *Terminal) refresh(ctx context.Context) {
	if t.reloader != nil {
		t.trigger(DomainFloor, DomainKitchen)
		return
	}
	if err := t.ReloadAll(ctx); err != nil {
		t.logger.Debug("refresh after kitchen event failed", "error", err)
	}
}
