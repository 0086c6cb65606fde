package pos

import (
	"errors"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderPaid      = errors.New("order is already paid")
	ErrTipNotAccepted = errors.New("payment method does not accept tips")
)

const (
	SourceTable    = "table"
	SourceTakeaway = "takeaway"
	SourceDelivery = "delivery"

	OrderStatusSent = "sent"
	OrderStatusPaid = "paid"

	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

var hundred = decimal.NewFromInt(100)

type OrderItem struct {
	ProductID     string           `json:"product_id" bson:"product_id"`
	ProductName   string           `json:"product_name" bson:"product_name"`
	Price         decimal.Decimal  `json:"price" bson:"price"`
	Quantity      int              `json:"quantity" bson:"quantity"`
	Note          string           `json:"note,omitempty" bson:"note,omitempty"`
	Portion       string           `json:"portion" bson:"portion"`
	IsIkram       bool             `json:"is_ikram" bson:"is_ikram"`
	IkramReason   string           `json:"ikram_reason,omitempty" bson:"ikram_reason,omitempty"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty" bson:"original_price,omitempty"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Discount struct {
	Type  string          `json:"type" bson:"type"`
	Value decimal.Decimal `json:"value" bson:"value"`
}

type Payment struct {
	Method string          `json:"method" bson:"method"`
	Amount decimal.Decimal `json:"amount" bson:"amount"`
	Tip    decimal.Decimal `json:"tip" bson:"tip"`
	PaidAt time.Time       `json:"paid_at" bson:"paid_at"`
}

type DeliveryRef struct {
	Platform        string `json:"platform" bson:"platform"`
	ExternalOrderID string `json:"external_order_id" bson:"external_order_id"`
}

type Order struct {
	ID          uuid.UUID       `json:"id" bson:"_id"`
	TableID     *uuid.UUID      `json:"table_id,omitempty" bson:"table_id,omitempty"`
	Source      string          `json:"source" bson:"source"`
	Items       []OrderItem     `json:"items" bson:"items"`
	Notes       string          `json:"notes,omitempty" bson:"notes,omitempty"`
	Discount    *Discount       `json:"discount,omitempty" bson:"discount,omitempty"`
	OrderNumber int             `json:"order_number" bson:"order_number"`
	Status      string          `json:"status" bson:"status"`
	Total       decimal.Decimal `json:"total" bson:"total"`
	Payment     *Payment        `json:"payment,omitempty" bson:"payment,omitempty"`
	DeliveryRef *DeliveryRef    `json:"delivery_ref,omitempty" bson:"delivery_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" bson:"updated_at"`
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) SetID(id uuid.UUID) {
	o.ID = id
}

func NewOrder() *Order {
	return &Order{
		ID:     aqm.GenerateNewID(),
		Status: OrderStatusSent,
		Items:  []OrderItem{},
	}
}

func (o *Order) BeforeCreate() {
	if o.ID == uuid.Nil {
		o.ID = aqm.GenerateNewID()
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = time.Now()
	o.Reprice()
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
	o.Reprice()
}

func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func (o *Order) DiscountAmount() decimal.Decimal {
	if o.Discount == nil {
		return decimal.Zero
	}
	switch o.Discount.Type {
	case DiscountPercent:
		return o.Subtotal().Mul(o.Discount.Value).Div(hundred)
	case DiscountFixed:
		return o.Discount.Value
	default:
		return decimal.Zero
	}
}

// Reprice refreshes the stored total. It is not clamped at zero, matching
// what terminals display.
func (o *Order) Reprice() {
	o.Total = o.Subtotal().Sub(o.DiscountAmount())
}

// RecordPayment closes the order with the given settlement.
func (o *Order) RecordPayment(method string, amount, tip decimal.Decimal) error {
	if o.IsPaid() {
		return ErrOrderPaid
	}
	o.Payment = &Payment{
		Method: method,
		Amount: amount,
		Tip:    tip,
		PaidAt: time.Now().UTC(),
	}
	o.Status = OrderStatusPaid
	o.BeforeUpdate()
	return nil
}
