package event

import (
	"errors"
	"time"
)

const (
	// KitchenTopic is the single logical topic every terminal listens on.
	KitchenTopic = "kitchen"

	TypeOrderUpdate = "order_update"

	ActionNewOrder     = "new_order"
	ActionStatusChange = "status_change"
)

var (
	ErrUnknownType   = errors.New("unknown event type")
	ErrUnknownAction = errors.New("unknown event action")
)

// OrderUpdateEvent is the envelope carried by the kitchen topic.
type OrderUpdateEvent struct {
	Type        string    `json:"type"`
	Action      string    `json:"action"`
	OrderID     string    `json:"order_id,omitempty"`
	OrderNumber int       `json:"order_number,omitempty"`
	TableID     string    `json:"table_id,omitempty"`
	Source      string    `json:"source,omitempty"`
	Status      string    `json:"status,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewOrderUpdate(action string) OrderUpdateEvent {
	return OrderUpdateEvent{
		Type:       TypeOrderUpdate,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate reports whether the envelope can be dispatched.
func (e OrderUpdateEvent) Validate() error {
	if e.Type != TypeOrderUpdate {
		return ErrUnknownType
	}
	switch e.Action {
	case ActionNewOrder, ActionStatusChange:
		return nil
	default:
		return ErrUnknownAction
	}
}
