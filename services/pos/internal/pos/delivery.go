package pos

import (
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDeliveryNotFound          = errors.New("delivery order not found")
	ErrInvalidDeliveryTransition = errors.New("invalid delivery transition")
)

const (
	DeliveryNew       = "new"
	DeliveryAccepted  = "accepted"
	DeliveryPreparing = "preparing"
	DeliveryReady     = "ready"
	DeliveryOnTheWay  = "on_the_way"
	DeliveryDelivered = "delivered"
	DeliveryCancelled = "cancelled"
)

// deliveryTransitions lists, per target status, the states it can be reached
// from.
var deliveryTransitions = map[string][]string{
	DeliveryAccepted:  {DeliveryNew},
	DeliveryCancelled: {DeliveryNew},
	DeliveryPreparing: {DeliveryAccepted},
	DeliveryReady:     {DeliveryAccepted, DeliveryPreparing},
	DeliveryOnTheWay:  {DeliveryReady},
	DeliveryDelivered: {DeliveryReady, DeliveryOnTheWay},
}

type Customer struct {
	Name    string `json:"name" bson:"name"`
	Phone   string `json:"phone" bson:"phone"`
	Address string `json:"address" bson:"address"`
}

type DeliveryItem struct {
	ProductID string          `json:"product_id,omitempty" bson:"product_id,omitempty"`
	Name      string          `json:"name" bson:"name"`
	Quantity  int             `json:"quantity" bson:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" bson:"unit_price"`
	Note      string          `json:"note,omitempty" bson:"note,omitempty"`
}

type DeliveryOrder struct {
	ID              uuid.UUID       `json:"id" bson:"_id"`
	Platform        string          `json:"platform" bson:"platform"`
	ExternalOrderID string          `json:"external_order_id" bson:"external_order_id"`
	Customer        Customer        `json:"customer" bson:"customer"`
	Items           []DeliveryItem  `json:"items" bson:"items"`
	Total           decimal.Decimal `json:"total" bson:"total"`
	Status          string          `json:"status" bson:"status"`
	PaymentMethod   string          `json:"payment_method" bson:"payment_method"`
	PrepTimeMinutes int             `json:"prep_time_minutes,omitempty" bson:"prep_time_minutes,omitempty"`
	RejectReason    string          `json:"reject_reason,omitempty" bson:"reject_reason,omitempty"`
	// PlatformCancelled is set when the platform reports the order cancelled.
	// Status does not follow it; the operator rejects explicitly.
	PlatformCancelled bool      `json:"platform_cancelled,omitempty" bson:"platform_cancelled,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at"`
}

func (d *DeliveryOrder) GetID() uuid.UUID {
	return d.ID
}

func (d *DeliveryOrder) ResourceType() string {
	return "delivery-order"
}

func (d *DeliveryOrder) SetID(id uuid.UUID) {
	d.ID = id
}

func (d *DeliveryOrder) BeforeCreate() {
	if d.ID == uuid.Nil {
		d.ID = aqm.GenerateNewID()
	}
	if d.Status == "" {
		d.Status = DeliveryNew
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
}

// IsLive reports whether the order still needs attention on the floor.
func (d *DeliveryOrder) IsLive() bool {
	return d.Status != DeliveryDelivered && d.Status != DeliveryCancelled
}

func (d *DeliveryOrder) CanMoveTo(status string) bool {
	for _, from := range deliveryTransitions[status] {
		if d.Status == from {
			return true
		}
	}
	return false
}

// MoveTo advances the order. Moving to the current status is refused.
func (d *DeliveryOrder) MoveTo(status string) error {
	if !d.CanMoveTo(status) {
		return fmt.Errorf("%w: %s from %s to %s", ErrInvalidDeliveryTransition, d.ExternalOrderID, d.Status, status)
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

// Refresh copies what the platform may still change on a live order. Local
// decisions (status, prep time, reject reason) are kept.
func (d *DeliveryOrder) Refresh(from *DeliveryOrder) {
	d.Customer = from.Customer
	d.Items = from.Items
	d.Total = from.Total
	d.PaymentMethod = from.PaymentMethod
	d.PlatformCancelled = from.PlatformCancelled
	d.UpdatedAt = time.Now()
}
