package event

import "time"

const (
	// TableStatusTopic delivers authoritative status changes for tables.
	TableStatusTopic = "tables.status"

	// EventTableStatusChanged identifies a table status change event payload.
	EventTableStatusChanged = "table.status.changed"
)

// TableStatusEvent captures a table transition applied by the backend. The
// kitchen bridge turns it into a status_change envelope for terminals.
type TableStatusEvent struct {
	EventType      string    `json:"event_type"`
	TableID        string    `json:"table_id"`
	OrderID        string    `json:"order_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Source         string    `json:"source,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// AsOrderUpdate converts the table event into the envelope terminals consume.
func (e TableStatusEvent) AsOrderUpdate() OrderUpdateEvent {
	evt := NewOrderUpdate(ActionStatusChange)
	evt.TableID = e.TableID
	evt.OrderID = e.OrderID
	evt.Status = e.Status
	evt.Origin = e.Source
	if !e.OccurredAt.IsZero() {
		evt.OccurredAt = e.OccurredAt
	}
	return evt
}
