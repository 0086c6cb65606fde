package terminal

import (
	"time"

	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
	"github.com/appetiteclub/pos/services/terminal/internal/delivery"
	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/appetiteclub/pos/services/terminal/internal/tables"
	"github.com/shopspring/decimal"
)

// View is the JSON shape of State handed to the UI shell.
type View struct {
	Sections      []tables.Section `json:"sections"`
	Tables        []tables.Table   `json:"tables"`
	StatusCounts  map[string]int   `json:"status_counts"`
	Selected      string           `json:"selected,omitempty"`
	Current       *OrderView       `json:"current,omitempty"`
	Dirty         bool             `json:"dirty"`
	LastPaid      *OrderView       `json:"last_paid,omitempty"`
	Delivery      []delivery.Order `json:"delivery"`
	NewDeliveries int              `json:"new_deliveries"`
	Kitchen       []orders.Order   `json:"kitchen"`
	EditLayout    bool             `json:"edit_layout"`
	DesktopAlerts bool             `json:"desktop_alerts"`
	Sync          string           `json:"sync"`
	Messages      []Message        `json:"messages"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type OrderView struct {
	orders.Order
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount_amount"`
	IkramValue decimal.Decimal `json:"ikram_value"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"item_count"`
}

func NewView(s State) View {
	counts := make(map[string]int, len(tablestatus.All))
	for _, st := range tablestatus.All {
		counts[st.Code()] = s.Floor.CountByStatus(st)
	}
	v := View{
		Sections:      s.Floor.Sections(),
		Tables:        s.Floor.Tables(),
		StatusCounts:  counts,
		Selected:      s.Selected,
		Dirty:         s.Dirty,
		Delivery:      s.Delivery,
		NewDeliveries: delivery.CountNew(s.Delivery),
		Kitchen:       s.Kitchen,
		EditLayout:    s.EditLayout,
		DesktopAlerts: s.DesktopAlerts,
		Sync:          string(s.Sync),
		Messages:      s.Messages,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.Current != nil {
		v.Current = newOrderView(*s.Current)
	}
	if s.LastPaid != nil {
		v.LastPaid = newOrderView(*s.LastPaid)
	}
	return v
}

func newOrderView(o orders.Order) *OrderView {
	return &OrderView{
		Order:      o,
		Subtotal:   o.Subtotal(),
		Discount:   o.DiscountAmount(),
		IkramValue: o.IkramValue(),
		Total:      o.Total(),
		ItemCount:  o.ItemCount(),
	}
}
