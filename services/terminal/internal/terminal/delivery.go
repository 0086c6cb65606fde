package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/pos/services/terminal/internal/delivery"
	"github.com/appetiteclub/pos/services/terminal/internal/notify"
	"github.com/appetiteclub/pos/services/terminal/internal/orders"
)

// FetchDelivery pulls the platform feeds and then rereads the live list.
func (t *Terminal) FetchDelivery(ctx context.Context) error {
	n, err := t.delivery.FetchNew(ctx)
	if err != nil {
		t.store.Error("Delivery platforms could not be reached")
		return err
	}
	t.logger.Debug("delivery fetch done", "upserted", n)
	return t.ReloadDelivery(ctx)
}

// ReloadDelivery reads the live delivery list and chimes when the number of
// new orders grew since the previous poll.
func (t *Terminal) ReloadDelivery(ctx context.Context) error {
	res, err := t.delivery.Poll(ctx)
	if err != nil {
		t.logger.Error("delivery reload failed", "error", err)
		if !t.deliveryFailing.Swap(true) {
			t.store.Error("Could not refresh delivery orders")
		}
		return err
	}
	t.deliveryFailing.Store(false)

	t.store.Update(func(s State) State {
		s.Delivery = res.Orders
		return s
	})
	if res.Notify {
		t.notify(ctx, notify.Notification{
			Kind:  notify.KindDelivery,
			Title: "New delivery order",
			Body:  fmt.Sprintf("%d waiting for confirmation", res.New),
			At:    time.Now(),
		})
	}
	return nil
}

func (t *Terminal) AcceptDelivery(ctx context.Context, id string, prepMinutes int) (delivery.Order, error) {
	return t.advanceDelivery(ctx, id, func(o delivery.Order) (delivery.Order, error) {
		return t.delivery.Accept(ctx, o, prepMinutes)
	})
}

func (t *Terminal) RejectDelivery(ctx context.Context, id, reason string) (delivery.Order, error) {
	return t.advanceDelivery(ctx, id, func(o delivery.Order) (delivery.Order, error) {
		return t.delivery.Reject(ctx, o, reason)
	})
}

func (t *Terminal) MarkDeliveryReady(ctx context.Context, id string) (delivery.Order, error) {
	return t.advanceDelivery(ctx, id, func(o delivery.Order) (delivery.Order, error) {
		return t.delivery.MarkReady(ctx, o)
	})
}

func (t *Terminal) MarkDeliveryDelivered(ctx context.Context, id string) (delivery.Order, error) {
	return t.advanceDelivery(ctx, id, func(o delivery.Order) (delivery.Order, error) {
		return t.delivery.MarkDelivered(ctx, o)
	})
}

func (t *Terminal) advanceDelivery(ctx context.Context, id string, step func(delivery.Order) (delivery.Order, error)) (delivery.Order, error) {
	o, ok := t.store.Snapshot().deliveryOrder(id)
	if !ok {
		return delivery.Order{}, fmt.Errorf("%w: %s", delivery.ErrOrderNotFound, id)
	}
	saved, err := step(o)
	if err != nil {
		t.store.Error(fmt.Sprintf("%s order %s: %v", o.Platform, o.ExternalOrderID, err))
		return o, err
	}
	t.store.Update(func(s State) State {
		return s.withDeliveryOrder(saved)
	})
	return saved, nil
}

// OpenDeliveryInPOS turns an accepted platform order into an editable POS
// order. Nothing is persisted until it is sent.
func (t *Terminal) OpenDeliveryInPOS(id string) (orders.Order, error) {
	o, ok := t.store.Snapshot().deliveryOrder(id)
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: %s", delivery.ErrOrderNotFound, id)
	}
	draft, err := delivery.AcceptIntoPOS(o)
	if err != nil {
		t.store.Error(fmt.Sprintf("Accept %s order %s before opening it", o.Platform, o.ExternalOrderID))
		return orders.Order{}, err
	}
	t.store.Update(func(s State) State {
		s.Selected = ""
		s = s.edited(draft)
		return s
	})
	return draft, nil
}
