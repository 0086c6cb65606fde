package delivery

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition = errors.New("invalid delivery transition")
	ErrNotAccepted       = errors.New("delivery order has not been accepted")
	ErrOrderNotFound     = errors.New("delivery order not found")
)

const (
	StatusNew       = "new"
	StatusAccepted  = "accepted"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusOnTheWay  = "on_the_way"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// transitions lists, per target status, the states it can be reached from.
var transitions = map[string][]string{
	StatusAccepted:  {StatusNew},
	StatusCancelled: {StatusNew},
	StatusReady:     {StatusAccepted, StatusPreparing},
	StatusDelivered: {StatusReady, StatusOnTheWay},
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Item struct {
	ProductID string          `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Note      string          `json:"note,omitempty"`
}

type Order struct {
	InternalID      string          `json:"id"`
	Platform        string          `json:"platform"`
	ExternalOrderID string          `json:"external_order_id"`
	Customer        Customer        `json:"customer"`
	Items           []Item          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PrepTimeMinutes int             `json:"prep_time_minutes,omitempty"`
	RejectReason    string          `json:"reject_reason,omitempty"`
	// PlatformCancelled flags an order the platform cancelled. It stays new
	// until the operator rejects it.
	PlatformCancelled bool      `json:"platform_cancelled,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func (o Order) IsNew() bool {
	return o.Status == StatusNew
}

// CanMoveTo reports whether status is reachable from the current one.
func (o Order) CanMoveTo(status string) bool {
	for _, from := range transitions[status] {
		if o.Status == from {
			return true
		}
	}
	return false
}

func (o Order) checkMove(status string) error {
	if !o.CanMoveTo(status) {
		return fmt.Errorf("%w: %s from %s to %s", ErrInvalidTransition, o.ExternalOrderID, o.Status, status)
	}
	return nil
}

// CountNew returns how many orders are still waiting for a decision.
func CountNew(list []Order) int {
	n := 0
	for _, o := range list {
		if o.IsNew() {
			n++
		}
	}
	return n
}
