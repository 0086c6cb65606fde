package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound    = errors.New("order item not found")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrIkramReason     = errors.New("ikram requires a reason")
	ErrAlreadyIkram    = errors.New("item is already complimentary")
	ErrInvalidDiscount = errors.New("invalid discount")
	ErrInvalidSplit    = errors.New("split needs at least one party")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrOrderNotSaved   = errors.New("order has not been saved")
	ErrOrderPaid       = errors.New("order is already paid")
	ErrTargetNotEmpty  = errors.New("target table is not empty")
	ErrTipNotAccepted  = errors.New("payment method does not accept tips")
	ErrNegativeTip     = errors.New("tip cannot be negative")
	ErrUnknownMethod   = errors.New("unknown payment method")
	ErrSameTable       = errors.New("source and target table are the same")
	ErrQuantityLimit   = errors.New("quantity exceeds the line limit")
)

// MaxLineQuantity caps the quantity of a single order line.
const MaxLineQuantity = 999

// PortionFull is the portion tag of a whole serving. Only full portions merge
// into an existing line.
const PortionFull = "full"

type Source string

const (
	SourceTable    Source = "table"
	SourceTakeaway Source = "takeaway"
	SourceDelivery Source = "delivery"
)

type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
	StatusPaid  Status = "paid"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Product is the catalog entry an item is created from. Name and price are
// copied into the item when it is added.
type Product struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Portion string          `json:"portion,omitempty"`
}

type OrderItem struct {
	ProductID     string           `json:"product_id"`
	ProductName   string           `json:"product_name"`
	Price         decimal.Decimal  `json:"price"`
	Quantity      int              `json:"quantity"`
	Note          string           `json:"note,omitempty"`
	Portion       string           `json:"portion"`
	IsIkram       bool             `json:"is_ikram"`
	IkramReason   string           `json:"ikram_reason,omitempty"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Payment struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	Tip    decimal.Decimal `json:"tip"`
	PaidAt time.Time       `json:"paid_at"`
}

// DeliveryRef links an order back to the platform order it was created from.
type DeliveryRef struct {
	Platform        string `json:"platform"`
	ExternalOrderID string `json:"external_order_id"`
}

type Order struct {
	ID          string       `json:"id,omitempty"`
	TableID     string       `json:"table_id,omitempty"`
	Source      Source       `json:"source"`
	Items       []OrderItem  `json:"items"`
	Notes       string       `json:"notes,omitempty"`
	Discount    *Discount    `json:"discount,omitempty"`
	OrderNumber int          `json:"order_number,omitempty"`
	Status      Status       `json:"status"`
	Payment     *Payment     `json:"payment,omitempty"`
	DeliveryRef *DeliveryRef `json:"delivery_ref,omitempty"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at,omitempty"`
}

// NewDraft returns a local order that has not reached the backend yet.
func NewDraft(source Source, tableID string) Order {
	return Order{
		TableID: tableID,
		Source:  source,
		Items:   []OrderItem{},
		Status:  StatusDraft,
	}
}

func (o Order) IsDraft() bool {
	return o.ID == ""
}

func (o Order) IsEmpty() bool {
	return len(o.Items) == 0
}

func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// clone copies the parts of the order that builder functions modify so the
// receiver stays untouched.
func (o Order) clone() Order {
	items := make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		if it.OriginalPrice != nil {
			p := *it.OriginalPrice
			it.OriginalPrice = &p
		}
		items[i] = it
	}
	o.Items = items
	if o.Discount != nil {
		d := *o.Discount
		o.Discount = &d
	}
	if o.Payment != nil {
		p := *o.Payment
		o.Payment = &p
	}
	if o.DeliveryRef != nil {
		r := *o.DeliveryRef
		o.DeliveryRef = &r
	}
	return o
}
