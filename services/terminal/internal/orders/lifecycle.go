package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/paymentmethod"
	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/terminal/internal/tables"
	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"
)

// API is the backend surface the lifecycle manager persists through.
type API interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
	UpdateOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	Pay(ctx context.Context, orderID string, req PaymentRequest) (Order, error)
	TransferTable(ctx context.Context, fromTableID, toTableID string) error
}

// Publisher sends envelopes to sibling terminals.
type Publisher interface {
	Publish(ctx context.Context, evt event.OrderUpdateEvent) error
}

type PaymentRequest struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	Tip    decimal.Decimal `json:"tip"`
}

// PaymentError reports a payment that failed after the order was already
// created. Order carries the saved version so payment can be retried against
// it.
type PaymentError struct {
	Order Order
	Err   error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("order %s saved but payment failed: %v", e.Order.ID, e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

type Manager struct {
	api       API
	publisher Publisher
	origin    string
	logger    aqm.Logger
}

// NewManager wires the manager. origin identifies this terminal on the sync
// channel; publisher may be nil when the channel is disabled.
func NewManager(api API, publisher Publisher, origin string, logger aqm.Logger) *Manager {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Manager{
		api:       api,
		publisher: publisher,
		origin:    origin,
		logger:    logger.With("component", "order-lifecycle"),
	}
}

// Load fetches a saved order.
func (m *Manager) Load(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, ErrOrderNotSaved
	}
	o, err := m.api.GetOrder(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("cannot load order %s: %w", id, err)
	}
	return o, nil
}

// SendOrder creates or updates the order and announces it. Empty orders are
// refused before the backend is contacted.
func (m *Manager) SendOrder(ctx context.Context, o Order) (Order, error) {
	if o.IsEmpty() {
		return o, ErrEmptyOrder
	}
	if o.Status == StatusPaid {
		return o, ErrOrderPaid
	}

	saved, err := m.save(ctx, o)
	if err != nil {
		return o, err
	}
	saved.Status = StatusSent

	m.announce(ctx, event.ActionNewOrder, saved)
	m.logger.Info("order sent", "order_id", saved.ID, "order_number", saved.OrderNumber, "items", len(saved.Items))
	return saved, nil
}

// HandlePayment settles the order. A draft is created first; if that works
// and the payment call does not, a *PaymentError with the saved order is
// returned. Nothing is rolled back.
func (m *Manager) HandlePayment(ctx context.Context, o Order, method string, tip decimal.Decimal) (Order, error) {
	if o.IsEmpty() {
		return o, ErrEmptyOrder
	}
	if o.Status == StatusPaid {
		return o, ErrOrderPaid
	}
	pm := paymentmethod.ByName(method)
	if pm == nil {
		return o, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	rules, err := pm.Rules()
	if err != nil {
		return o, err
	}
	if tip.IsNegative() {
		return o, ErrNegativeTip
	}
	if tip.IsPositive() && !rules.AcceptsTip {
		return o, fmt.Errorf("%w: %s", ErrTipNotAccepted, pm.Code())
	}

	if o.IsDraft() {
		created, err := m.save(ctx, o)
		if err != nil {
			return o, err
		}
		created.Status = StatusSent
		m.announce(ctx, event.ActionNewOrder, created)
		o = created
	}

	req := PaymentRequest{Method: pm.Code(), Amount: o.Total(), Tip: tip}
	paid, err := m.api.Pay(ctx, o.ID, req)
	if err != nil {
		m.logger.Error("payment failed after order was saved", "order_id", o.ID, "method", pm.Code(), "error", err)
		return o, &PaymentError{Order: o, Err: err}
	}

	paid = mergeSaved(o, paid)
	paid.Status = StatusPaid
	if paid.Payment == nil {
		paid.Payment = &Payment{Method: req.Method, Amount: req.Amount, Tip: req.Tip, PaidAt: time.Now().UTC()}
	}

	m.announce(ctx, event.ActionStatusChange, paid)
	m.logger.Info("order paid", "order_id", paid.ID, "method", pm.Code(), "amount", req.Amount.String(), "delegated", rules.Delegated)
	return paid, nil
}

// TransferOrder moves the order of from onto to. The target must be empty.
func (m *Manager) TransferOrder(ctx context.Context, o Order, from, to tables.Table) (Order, error) {
	if from.ID == to.ID {
		return o, ErrSameTable
	}
	if !to.Is(tablestatus.Statuses.Empty) {
		return o, fmt.Errorf("%w: %s is %s", ErrTargetNotEmpty, to.Name, to.Status)
	}

	next := o.clone()
	next.TableID = to.ID
	if o.IsDraft() {
		return next, nil
	}

	if err := m.api.TransferTable(ctx, from.ID, to.ID); err != nil {
		return o, fmt.Errorf("cannot transfer order %s: %w", o.ID, err)
	}

	m.announce(ctx, event.ActionStatusChange, next)
	m.logger.Info("order transferred", "order_id", o.ID, "from", from.ID, "to", to.ID)
	return next, nil
}

func (m *Manager) save(ctx context.Context, o Order) (Order, error) {
	if o.IsDraft() {
		created, err := m.api.CreateOrder(ctx, o)
		if err != nil {
			return o, fmt.Errorf("cannot create order: %w", err)
		}
		return mergeSaved(o, created), nil
	}
	updated, err := m.api.UpdateOrder(ctx, o)
	if err != nil {
		return o, fmt.Errorf("cannot update order %s: %w", o.ID, err)
	}
	return mergeSaved(o, updated), nil
}

// announce never fails the calling operation; sibling terminals still catch
// up on their next poll.
func (m *Manager) announce(ctx context.Context, action string, o Order) {
	if m.publisher == nil {
		return
	}
	evt := event.NewOrderUpdate(action)
	evt.OrderID = o.ID
	evt.OrderNumber = o.OrderNumber
	evt.TableID = o.TableID
	evt.Source = string(o.Source)
	evt.Status = string(o.Status)
	evt.Origin = m.origin
	if err := m.publisher.Publish(ctx, evt); err != nil {
		m.logger.Error("cannot publish order update", "order_id", o.ID, "action", action, "error", err)
	}
}

// mergeSaved keeps the local content when the backend answers with a partial
// representation.
func mergeSaved(local, saved Order) Order {
	out := saved.clone()
	if out.ID == "" {
		out.ID = local.ID
	}
	if out.Items == nil {
		out.Items = local.clone().Items
	}
	if out.Source == "" {
		out.Source = local.Source
	}
	if out.TableID == "" {
		out.TableID = local.TableID
	}
	if out.Discount == nil && local.Discount != nil {
		d := *local.Discount
		out.Discount = &d
	}
	if out.Notes == "" {
		out.Notes = local.Notes
	}
	if out.OrderNumber == 0 {
		out.OrderNumber = local.OrderNumber
	}
	if out.DeliveryRef == nil && local.DeliveryRef != nil {
		r := *local.DeliveryRef
		out.DeliveryRef = &r
	}
	return out
}

// IsPaymentError reports whether err left a saved but unpaid order behind.
func IsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
