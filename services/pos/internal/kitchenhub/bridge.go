package kitchenhub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/pos/pkg/event"
)

// Start subscribes the hub to the kitchen subject, where every replica
// publishes terminal envelopes, and to table status events, which reach
// terminals as status_change envelopes.
func (h *Hub) Start(ctx context.Context) error {
	if h.subscriber == nil {
		h.logger.Info("kitchen hub running without subscriber, relaying locally only")
		return nil
	}

	h.logger.Info("starting kitchen hub bridge", "topics", []string{event.KitchenTopic, event.TableStatusTopic})

	if err := h.subscriber.Subscribe(ctx, event.KitchenTopic, h.handleKitchen); err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", event.KitchenTopic, err)
	}
	if err := h.subscriber.Subscribe(ctx, event.TableStatusTopic, h.handleTableStatus); err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", event.TableStatusTopic, err)
	}
	return nil
}

// Stop disconnects every terminal. They reconnect to another replica on
// their own.
func (h *Hub) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	for _, c := range h.list() {
		h.remove(c)
		_ = c.close()
	}
	return nil
}

func (h *Hub) handleKitchen(ctx context.Context, msg []byte) error {
	var evt event.OrderUpdateEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		h.logger.Info("invalid kitchen envelope", "error", err)
		return nil
	}
	if err := evt.Validate(); err != nil {
		h.logger.Info("ignoring kitchen envelope", "action", evt.Action, "error", err)
		return nil
	}
	h.Broadcast(msg)
	return nil
}

func (h *Hub) handleTableStatus(ctx context.Context, msg []byte) error {
	var evt event.TableStatusEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		h.logger.Info("invalid table status event", "error", err)
		return nil
	}
	if evt.TableID == "" {
		h.logger.Info("table status event without table id")
		return nil
	}

	if err := h.BroadcastEvent(evt.AsOrderUpdate()); err != nil {
		return fmt.Errorf("cannot relay table status: %w", err)
	}
	h.logger.Debug("table status relayed", "table_id", evt.TableID, "status", evt.Status)
	return nil
}
