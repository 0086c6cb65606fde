package pos

import "github.com/shopspring/decimal"

type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type MergeRequest struct {
	RootID   string   `json:"root_id"`
	TableIDs []string `json:"table_ids"`
}

type TransferRequest struct {
	TargetTableID string `json:"target_table_id"`
}

// OrderRequest is what terminals send when they create or replace an order.
// Server owned fields (number, status, payment) are ignored.
type OrderRequest struct {
	TableID     string       `json:"table_id,omitempty"`
	Source      string       `json:"source"`
	Items       []OrderItem  `json:"items"`
	Notes       string       `json:"notes,omitempty"`
	Discount    *Discount    `json:"discount,omitempty"`
	DeliveryRef *DeliveryRef `json:"delivery_ref,omitempty"`
}

type PaymentRequest struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	Tip    decimal.Decimal `json:"tip"`
}

type AcceptRequest struct {
	PrepTimeMinutes int `json:"prep_time_minutes"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type DeliveryStatusRequest struct {
	Status string `json:"status"`
}
