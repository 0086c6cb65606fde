package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/appetiteclub/pos/pkg/enums/platform"
	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/aquamarinepk/aqm"
)

const fallbackRejectReason = "restaurant_unavailable"

// API is the backend surface for platform orders.
type API interface {
	LiveOrders(ctx context.Context) ([]Order, error)
	FetchFeeds(ctx context.Context) (int, error)
	Accept(ctx context.Context, id string, prepMinutes int) (Order, error)
	Reject(ctx context.Context, id, reason string) (Order, error)
	UpdateStatus(ctx context.Context, id, status string) (Order, error)
}

// PollResult is what a single pass over the live feed produced.
type PollResult struct {
	Orders []Order
	New    int
	Notify bool
}

// Aggregator drives platform orders through their lifecycle. Transitions are
// checked locally before the backend is asked to apply them.
type Aggregator struct {
	api    API
	watch  *NewOrderWatch
	logger aqm.Logger
}

func NewAggregator(api API, logger aqm.Logger) *Aggregator {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Aggregator{
		api:    api,
		watch:  NewNewOrderWatch(),
		logger: logger.With("component", "delivery"),
	}
}

// FetchNew asks the backend to pull every platform feed. The backend upserts
// by external id so repeated pulls are harmless.
func (a *Aggregator) FetchNew(ctx context.Context) (int, error) {
	n, err := a.api.FetchFeeds(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot fetch delivery feeds: %w", err)
	}
	a.logger.Debug("delivery feeds fetched", "upserted", n)
	return n, nil
}

// Poll reads the live list and decides whether a new-order alert is due.
func (a *Aggregator) Poll(ctx context.Context) (PollResult, error) {
	live, err := a.api.LiveOrders(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("cannot read live delivery orders: %w", err)
	}
	n := CountNew(live)
	return PollResult{Orders: live, New: n, Notify: a.watch.Observe(n)}, nil
}

func (a *Aggregator) Accept(ctx context.Context, o Order, prepMinutes int) (Order, error) {
	if err := o.checkMove(StatusAccepted); err != nil {
		return o, err
	}
	if prepMinutes <= 0 {
		prepMinutes = profileFor(o.Platform).DefaultPrepMinutes
	}

	saved, err := a.api.Accept(ctx, o.InternalID, prepMinutes)
	if err != nil {
		return o, fmt.Errorf("cannot accept %s order %s: %w", o.Platform, o.ExternalOrderID, err)
	}
	saved = fill(o, saved, StatusAccepted)
	saved.PrepTimeMinutes = prepMinutes
	a.logger.Info("delivery order accepted", "platform", o.Platform, "external_id", o.ExternalOrderID, "prep_minutes", prepMinutes)
	return saved, nil
}

// Reject cancels a new order. The platform default reason is used when none
// is given.
func (a *Aggregator) Reject(ctx context.Context, o Order, reason string) (Order, error) {
	if err := o.checkMove(StatusCancelled); err != nil {
		return o, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = profileFor(o.Platform).DefaultRejectReason
	}

	saved, err := a.api.Reject(ctx, o.InternalID, reason)
	if err != nil {
		return o, fmt.Errorf("cannot reject %s order %s: %w", o.Platform, o.ExternalOrderID, err)
	}
	saved = fill(o, saved, StatusCancelled)
	saved.RejectReason = reason
	a.logger.Info("delivery order rejected", "platform", o.Platform, "external_id", o.ExternalOrderID, "reason", reason)
	return saved, nil
}

func (a *Aggregator) MarkReady(ctx context.Context, o Order) (Order, error) {
	return a.advance(ctx, o, StatusReady)
}

func (a *Aggregator) MarkDelivered(ctx context.Context, o Order) (Order, error) {
	return a.advance(ctx, o, StatusDelivered)
}

func (a *Aggregator) advance(ctx context.Context, o Order, status string) (Order, error) {
	if err := o.checkMove(status); err != nil {
		return o, err
	}
	saved, err := a.api.UpdateStatus(ctx, o.InternalID, status)
	if err != nil {
		return o, fmt.Errorf("cannot mark %s order %s as %s: %w", o.Platform, o.ExternalOrderID, status, err)
	}
	a.logger.Info("delivery order advanced", "platform", o.Platform, "external_id", o.ExternalOrderID, "status", status)
	return fill(o, saved, status), nil
}

// AcceptIntoPOS turns an accepted platform order into a regular order so it
// can be edited and reprinted like a dine-in one.
func AcceptIntoPOS(o Order) (orders.Order, error) {
	switch o.Status {
	case StatusNew, StatusCancelled, "":
		return orders.Order{}, fmt.Errorf("%w: %s is %s", ErrNotAccepted, o.ExternalOrderID, o.Status)
	}

	out := orders.NewDraft(orders.SourceDelivery, "")
	out.DeliveryRef = &orders.DeliveryRef{Platform: o.Platform, ExternalOrderID: o.ExternalOrderID}
	out.Notes = strings.TrimSpace(fmt.Sprintf("%s %s", o.Customer.Name, o.Customer.Phone))

	for _, it := range o.Items {
		if it.Quantity <= 0 {
			continue
		}
		id := it.ProductID
		if id == "" {
			id = o.Platform + ":" + it.Name
		}
		out.Items = append(out.Items, orders.OrderItem{
			ProductID:   id,
			ProductName: it.Name,
			Price:       it.UnitPrice,
			Quantity:    it.Quantity,
			Note:        it.Note,
			Portion:     orders.PortionFull,
		})
	}
	return out, nil
}

func profileFor(name string) platform.Profile {
	if p := platform.ByName(name); p != nil {
		if prof, err := p.Profile(); err == nil {
			return prof
		}
	}
	return platform.Profile{DefaultPrepMinutes: 20, DefaultRejectReason: fallbackRejectReason}
}

// fill keeps local fields the backend left out of its answer.
func fill(local, saved Order, status string) Order {
	if saved.InternalID == "" {
		saved = local
	}
	if saved.Items == nil {
		saved.Items = local.Items
	}
	if saved.Platform == "" {
		saved.Platform = local.Platform
		saved.ExternalOrderID = local.ExternalOrderID
	}
	saved.Status = status
	return saved
}

// NewOrderWatch decides when a batch of new platform orders deserves an
// alert. It compares the number of orders in the new state with the number
// seen on the previous poll and fires only when it grew. An arrival and a
// departure within the same poll cancel out and do not fire.
type NewOrderWatch struct {
	mu   sync.Mutex
	prev int
}

func NewNewOrderWatch() *NewOrderWatch {
	return &NewOrderWatch{}
}

func (w *NewOrderWatch) Observe(current int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	fire := current > w.prev
	w.prev = current
	return fire
}
