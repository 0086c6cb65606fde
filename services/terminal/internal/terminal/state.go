package terminal

import (
	"time"

	"github.com/appetiteclub/pos/services/terminal/internal/delivery"
	"github.com/appetiteclub/pos/services/terminal/internal/kitchenstream"
	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/appetiteclub/pos/services/terminal/internal/tables"
)

const (
	LevelInfo  = "info"
	LevelError = "error"

	MessageTTL = 6 * time.Second
)

// Message is a transient line shown to staff.
type Message struct {
	ID        uint64    `json:"id"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is everything one terminal knows. Values are replaced, never mutated
// in place: every change goes through Store.Update as a func(State) State.
type State struct {
	Floor tables.Registry
	// Orders caches sent orders by id as last read from the backend.
	Orders map[string]orders.Order

	// Selected is the table currently open on the terminal, empty for
	// takeaway, delivery or no selection.
	Selected string
	Current  *orders.Order
	// Revision grows with every local edit of Current. Dirty marks edits
	// the backend has not seen yet.
	Revision int
	Dirty    bool

	LastPaid *orders.Order

	Delivery []delivery.Order
	Kitchen  []orders.Order

	EditLayout    bool
	DesktopAlerts bool
	Sync          kitchenstream.State
	Messages      []Message

	FloorLoadedAt time.Time
	UpdatedAt     time.Time
}

func (s State) withOrders(list []orders.Order) State {
	next := make(map[string]orders.Order, len(list))
	for _, o := range list {
		if o.ID != "" {
			next[o.ID] = o
		}
	}
	s.Orders = next
	return s
}

func (s State) withOrder(o orders.Order) State {
	next := make(map[string]orders.Order, len(s.Orders)+1)
	for id, cached := range s.Orders {
		next[id] = cached
	}
	next[o.ID] = o
	s.Orders = next
	return s
}

func (s State) withoutOrder(id string) State {
	next := make(map[string]orders.Order, len(s.Orders))
	for oid, cached := range s.Orders {
		if oid != id {
			next[oid] = cached
		}
	}
	s.Orders = next
	return s
}

// edited records a local change to the current order.
func (s State) edited(o orders.Order) State {
	s.Current = &o
	s.Revision++
	s.Dirty = true
	return s
}

// tableHasItems reports whether an order bound to tableID still carries
// items, looking at the local edit first.
func (s State) tableHasItems(tableID string) bool {
	if s.Current != nil && s.Current.TableID == tableID && !s.Current.IsEmpty() {
		return true
	}
	if t, ok := s.Floor.Find(tableID); ok && t.HasOrder() {
		if o, ok := s.Orders[t.CurrentOrderID]; ok {
			return !o.IsEmpty()
		}
	}
	for _, o := range s.Orders {
		if o.TableID == tableID && !o.IsEmpty() && o.Status != orders.StatusPaid {
			return true
		}
	}
	return false
}

func (s State) deliveryOrder(id string) (delivery.Order, bool) {
	for _, o := range s.Delivery {
		if o.InternalID == id {
			return o, true
		}
	}
	return delivery.Order{}, false
}

func (s State) withDeliveryOrder(o delivery.Order) State {
	next := make([]delivery.Order, 0, len(s.Delivery)+1)
	found := false
	for _, cur := range s.Delivery {
		if cur.InternalID == o.InternalID {
			next = append(next, o)
			found = true
			continue
		}
		next = append(next, cur)
	}
	if !found {
		next = append(next, o)
	}
	s.Delivery = next
	return s
}
