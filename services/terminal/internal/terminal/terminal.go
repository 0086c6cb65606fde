package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
	"github.com/appetiteclub/pos/services/terminal/internal/delivery"
	"github.com/appetiteclub/pos/services/terminal/internal/notify"
	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/appetiteclub/pos/services/terminal/internal/tables"
	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DomainFloor    = "floor"
	DomainDelivery = "delivery"
	DomainKitchen  = "kitchen"
)

var (
	ErrNoOpenOrder      = errors.New("no order is open")
	ErrNoTableSelected  = errors.New("no table is selected")
	ErrNoOrderForTable  = errors.New("table is busy but has no order")
	ErrMergedTransfer   = errors.New("merged tables cannot be transferred")
	ErrNoPermissionSink = errors.New("desktop notifications are not available")
)

type FloorSource interface {
	ListSections(ctx context.Context) ([]tables.Section, error)
	ListTables(ctx context.Context) ([]tables.Table, error)
}

type OrderSource interface {
	ListOrders(ctx context.Context, status string) ([]orders.Order, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// Reloader wakes the poll task of a data domain ahead of its interval.
type Reloader interface {
	Trigger(domain string)
}

type PermissionSetter interface {
	SetPermission(granted bool)
	Granted() bool
}

type Deps struct {
	Store       *Store
	Floor       FloorSource
	Orders      OrderSource
	TablesAPI   tables.API
	OrdersAPI   orders.API
	DeliveryAPI delivery.API
	Publisher   orders.Publisher
	Notifier    Notifier
	Permissions PermissionSetter
	Origin      string
	Logger      aqm.Logger
}

// Terminal runs every floor, order and delivery operation of one POS
// terminal against its Store.
type Terminal struct {
	store       *Store
	floor       FloorSource
	orderSource OrderSource
	layout      *tables.Layout
	merges      *tables.Coordinator
	orders      *orders.Manager
	delivery    *delivery.Aggregator
	notifier    Notifier
	permissions PermissionSetter
	reloader    Reloader
	logger      aqm.Logger

	floorFailing    atomic.Bool
	deliveryFailing atomic.Bool
}

func New(d Deps) *Terminal {
	logger := d.Logger
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	store := d.Store
	if store == nil {
		store = NewStore(State{})
	}
	return &Terminal{
		store:       store,
		floor:       d.Floor,
		orderSource: d.Orders,
		layout:      tables.NewLayout(d.TablesAPI, logger),
		merges:      tables.NewCoordinator(d.TablesAPI, logger),
		orders:      orders.NewManager(d.OrdersAPI, d.Publisher, d.Origin, logger),
		delivery:    delivery.NewAggregator(d.DeliveryAPI, logger),
		notifier:    d.Notifier,
		permissions: d.Permissions,
		logger:      logger.With("component", "terminal"),
	}
}

func (t *Terminal) Store() *Store {
	return t.store
}

func (t *Terminal) SetReloader(r Reloader) {
	t.reloader = r
}

// ReloadFloor reads tables and open orders. Sections are static and read
// only until the first success. On failure the last known floor stays.
func (t *Terminal) ReloadFloor(ctx context.Context) error {
	needSections := len(t.store.Snapshot().Floor.Sections()) == 0

	var sections []tables.Section
	var list []tables.Table
	var open []orders.Order

	g, gctx := errgroup.WithContext(ctx)
	if needSections {
		g.Go(func() error {
			var err error
			sections, err = t.floor.ListSections(gctx)
			return err
		})
	}
	g.Go(func() error {
		var err error
		list, err = t.floor.ListTables(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = t.orderSource.ListOrders(gctx, string(orders.StatusSent))
		return err
	})

	if err := g.Wait(); err != nil {
		t.logger.Error("floor reload failed", "error", err)
		if !t.floorFailing.Swap(true) {
			t.store.Error("Could not refresh the floor, showing last known state")
		}
		return fmt.Errorf("cannot reload floor: %w", err)
	}
	t.floorFailing.Store(false)

	t.store.Update(func(s State) State {
		if !needSections {
			sections = s.Floor.Sections()
		}
		s.Floor = tables.NewRegistry(sections, list)
		t.logger.Debug("floor reloaded", "tables", s.Floor.Len(), "open_orders", len(open))
		s = s.withOrders(open)
		if s.Current != nil && s.Current.ID != "" && !s.Dirty {
			if fresh, ok := s.Orders[s.Current.ID]; ok {
				s.Current = &fresh
			}
		}
		s.FloorLoadedAt = time.Now()
		return s
	})
	return nil
}

// ReloadKitchen refreshes the list of orders waiting in the kitchen.
func (t *Terminal) ReloadKitchen(ctx context.Context) error {
	list, err := t.orderSource.ListOrders(ctx, string(orders.StatusSent))
	if err != nil {
		t.logger.Error("kitchen reload failed", "error", err)
		return fmt.Errorf("cannot reload kitchen view: %w", err)
	}
	t.store.Update(func(s State) State {
		s.Kitchen = list
		return s
	})
	return nil
}

func (t *Terminal) ReloadAll(ctx context.Context) error {
	return errors.Join(t.ReloadFloor(ctx), t.ReloadKitchen(ctx))
}

// SelectTable opens the table. Empty tables get a fresh draft; busy ones
// load their order. If that load fails the table stays unselected.
func (t *Terminal) SelectTable(ctx context.Context, id string) error {
	snap := t.store.Snapshot()
	tbl, ok := snap.Floor.ResolveRoot(id)
	if !ok {
		return fmt.Errorf("%w: %s", tables.ErrTableNotFound, id)
	}

	switch {
	case tbl.HasOrder():
		o, err := t.orders.Load(ctx, tbl.CurrentOrderID)
		if err != nil {
			t.unselect()
			t.store.Error(fmt.Sprintf("Could not open %s, try again", tbl.Name))
			t.logger.Error("cannot load table order", "table_id", tbl.ID, "order_id", tbl.CurrentOrderID, "error", err)
			return err
		}
		t.store.Update(func(s State) State {
			s = s.withOrder(o)
			s.Selected = tbl.ID
			s.Current = &o
			s.Revision++
			s.Dirty = false
			return s
		})
	case tbl.Is(tablestatus.Statuses.Empty), tbl.Is(tablestatus.Statuses.Reserved), tbl.IsMergeRoot():
		draft := orders.NewDraft(orders.SourceTable, tbl.ID)
		t.store.Update(func(s State) State {
			s.Selected = tbl.ID
			s.Current = &draft
			s.Revision++
			s.Dirty = false
			return s
		})
	default:
		t.unselect()
		err := fmt.Errorf("%w: %s", ErrNoOrderForTable, tbl.Name)
		t.store.Error(fmt.Sprintf("%s is %s but has no order", tbl.Name, tbl.Status))
		return err
	}
	return nil
}

func (t *Terminal) Deselect() {
	t.unselect()
}

func (t *Terminal) StartTakeaway() {
	draft := orders.NewDraft(orders.SourceTakeaway, "")
	t.store.Update(func(s State) State {
		s.Selected = ""
		s.Current = &draft
		s.Revision++
		s.Dirty = false
		return s
	})
}

func (t *Terminal) unselect() {
	t.store.Update(func(s State) State {
		s.Selected = ""
		s.Current = nil
		s.Dirty = false
		return s
	})
}

func (t *Terminal) AddItem(p orders.Product) error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.AddItem(p) })
}

func (t *Terminal) UpdateQuantity(index, delta int) error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.UpdateQuantity(index, delta) })
}

func (t *Terminal) RemoveItem(index int) error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.RemoveItem(index) })
}

func (t *Terminal) SetItemNote(index int, note string) error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.SetItemNote(index, note) })
}

func (t *Terminal) MarkIkram(index int, reason string) error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.MarkIkram(index, reason) })
}

func (t *Terminal) ApplyDiscount(kind orders.DiscountType, value decimal.Decimal) error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.ApplyDiscount(kind, value) })
}

func (t *Terminal) ClearDiscount() error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.ClearDiscount(), nil })
}

func (t *Terminal) SetOrderNotes(text string) error {
	return t.edit(func(o orders.Order) (orders.Order, error) { return o.SetNotes(text), nil })
}

// edit applies a builder step to the open order inside a single store update.
func (t *Terminal) edit(fn func(orders.Order) (orders.Order, error)) error {
	var err error
	t.store.Update(func(s State) State {
		if s.Current == nil {
			err = ErrNoOpenOrder
			return s
		}
		if s.Current.Status == orders.StatusPaid {
			err = orders.ErrOrderPaid
			return s
		}
		next, e := fn(*s.Current)
		if e != nil {
			err = e
			return s
		}
		return s.edited(next)
	})
	return err
}

// SendOrder persists the open order and occupies its table.
func (t *Terminal) SendOrder(ctx context.Context) (orders.Order, error) {
	snap := t.store.Snapshot()
	if snap.Current == nil {
		return orders.Order{}, ErrNoOpenOrder
	}
	sentFrom := *snap.Current

	sent, err := t.orders.SendOrder(ctx, sentFrom)
	if err != nil {
		if errors.Is(err, orders.ErrEmptyOrder) {
			t.store.Error("Add at least one item before sending")
		} else {
			t.store.Error("Order could not be sent, try again")
		}
		return sentFrom, err
	}

	t.store.Update(func(s State) State {
		s = s.withOrder(sent)
		if s.Current != nil && sameOrder(*s.Current, sentFrom) {
			if s.Revision == snap.Revision {
				s.Current = &sent
				s.Dirty = false
			} else {
				cur := *s.Current
				cur.ID, cur.OrderNumber, cur.Status = sent.ID, sent.OrderNumber, sent.Status
				s.Current = &cur
			}
		}
		if sent.TableID != "" {
			s.Floor = occupy(s.Floor, sent.TableID, sent.ID)
		}
		return s
	})
	t.store.Info(fmt.Sprintf("Order #%d sent to kitchen", sent.OrderNumber))
	t.trigger(DomainKitchen)
	return sent, nil
}

// Pay settles the open order. The table enters the bill state while the
// payment runs; it is freed on success and reopened on failure.
func (t *Terminal) Pay(ctx context.Context, method string, tip decimal.Decimal) (orders.Order, error) {
	snap := t.store.Snapshot()
	if snap.Current == nil {
		return orders.Order{}, ErrNoOpenOrder
	}
	cur := *snap.Current
	tableID := cur.TableID

	if tableID != "" {
		t.store.Update(func(s State) State {
			if tbl, ok := s.Floor.Find(tableID); ok {
				if billed, err := tbl.RequestBill(); err == nil {
					s.Floor = s.Floor.With(billed)
				}
			}
			return s
		})
	}

	paid, err := t.orders.HandlePayment(ctx, cur, method, tip)
	if err != nil {
		if pe, ok := orders.IsPaymentError(err); ok {
			saved := pe.Order
			t.store.Update(func(s State) State {
				s = s.withOrder(saved)
				if s.Current != nil && sameOrder(*s.Current, cur) {
					s.Current = &saved
					s.Dirty = false
				}
				if tableID != "" {
					s.Floor = reopen(s.Floor, tableID, saved.ID)
				}
				return s
			})
			t.store.Error(fmt.Sprintf("Order #%d was saved but payment failed, open the table again to retry", saved.OrderNumber))
			t.notify(ctx, notify.Notification{
				Kind:  notify.KindPayment,
				Title: "Payment failed",
				Body:  fmt.Sprintf("Order #%d is saved but unpaid", saved.OrderNumber),
				At:    time.Now(),
			})
			return saved, err
		}
		t.store.Update(func(s State) State {
			if tableID != "" {
				s.Floor = reopen(s.Floor, tableID, "")
			}
			return s
		})
		t.store.Error(fmt.Sprintf("Payment failed: %v", err))
		return cur, err
	}

	t.store.Update(func(s State) State {
		s = s.withoutOrder(paid.ID)
		s.LastPaid = &paid
		if s.Current != nil && sameOrder(*s.Current, cur) {
			s.Current = nil
			s.Selected = ""
			s.Dirty = false
		}
		if tableID != "" {
			s.Floor = settle(s.Floor, tableID)
		}
		return s
	})
	t.store.Info(fmt.Sprintf("Order #%d paid", paid.OrderNumber))
	t.trigger(DomainKitchen)
	return paid, nil
}

// SplitBill shows how much each of n parties owes for the open order.
func (t *Terminal) SplitBill(n int) (orders.Split, error) {
	snap := t.store.Snapshot()
	if snap.Current == nil {
		return orders.Split{}, ErrNoOpenOrder
	}
	return orders.SplitBill(snap.Current.Total(), n)
}

// TransferOrder moves the open table's order to an empty table.
func (t *Terminal) TransferOrder(ctx context.Context, targetID string) error {
	snap := t.store.Snapshot()
	if snap.Current == nil {
		return ErrNoOpenOrder
	}
	if snap.Selected == "" {
		return ErrNoTableSelected
	}
	from, ok := snap.Floor.Find(snap.Selected)
	if !ok {
		return fmt.Errorf("%w: %s", tables.ErrTableNotFound, snap.Selected)
	}
	if from.IsMergeRoot() || from.IsMergeMember() {
		return ErrMergedTransfer
	}
	to, ok := snap.Floor.Find(targetID)
	if !ok {
		return fmt.Errorf("%w: %s", tables.ErrTableNotFound, targetID)
	}

	moved, err := t.orders.TransferOrder(ctx, *snap.Current, from, to)
	if err != nil {
		t.store.Error(fmt.Sprintf("Could not move order to %s: %v", to.Name, err))
		return err
	}

	t.store.Update(func(s State) State {
		if !moved.IsDraft() {
			s = s.withOrder(moved)
			if src, ok := s.Floor.Find(from.ID); ok {
				s.Floor = s.Floor.With(src.Release(false))
			}
			s.Floor = occupy(s.Floor, to.ID, moved.ID)
		}
		s.Selected = to.ID
		if s.Current != nil && sameOrder(*s.Current, *snap.Current) {
			cur := *s.Current
			cur.TableID = to.ID
			s.Current = &cur
		}
		return s
	})
	t.store.Info(fmt.Sprintf("Order moved from %s to %s", from.Name, to.Name))
	return nil
}

func (t *Terminal) MergeTables(ctx context.Context, rootID string, others []string) error {
	before := t.store.Snapshot().Floor
	after, err := t.merges.Merge(ctx, before, rootID, others)
	if err != nil {
		if errors.Is(err, tables.ErrMergeNeedsTwoTables) {
			t.store.Error("Select at least two tables to merge")
		} else {
			t.store.Error(fmt.Sprintf("Tables could not be merged: %v", err))
		}
		return err
	}
	t.applyFloor(before, after)
	return nil
}

func (t *Terminal) SplitTable(ctx context.Context, id string) error {
	snap := t.store.Snapshot()
	after, err := t.merges.Split(ctx, snap.Floor, id, snap.tableHasItems)
	if err != nil {
		t.store.Error(fmt.Sprintf("Tables could not be split: %v", err))
		return err
	}
	t.applyFloor(snap.Floor, after)
	return nil
}

func (t *Terminal) SetEditLayout(enabled bool) {
	t.store.Update(func(s State) State {
		s.EditLayout = enabled
		return s
	})
}

func (t *Terminal) MoveTable(ctx context.Context, id string, pos tables.Position) error {
	snap := t.store.Snapshot()
	after, err := t.layout.Move(ctx, snap.Floor, snap.EditLayout, id, pos)
	if err != nil {
		if !errors.Is(err, tables.ErrLayoutLocked) {
			t.store.Error(fmt.Sprintf("Table could not be moved: %v", err))
		}
		return err
	}
	t.applyFloor(snap.Floor, after)
	return nil
}

// applyFloor copies only the tables an operation changed onto the current
// floor, so a poll that landed meanwhile is not thrown away.
func (t *Terminal) applyFloor(before, after tables.Registry) {
	var changed []tables.Table
	for _, tbl := range after.Tables() {
		prev, ok := before.Find(tbl.ID)
		if !ok || !sameTable(prev, tbl) {
			changed = append(changed, tbl)
		}
	}
	if len(changed) == 0 {
		return
	}
	t.store.Update(func(s State) State {
		s.Floor = s.Floor.With(changed...)
		return s
	})
}

func (t *Terminal) SetDesktopPermission(granted bool) error {
	if t.permissions == nil {
		return ErrNoPermissionSink
	}
	t.permissions.SetPermission(granted)
	t.store.Update(func(s State) State {
		s.DesktopAlerts = t.permissions.Granted()
		return s
	})
	return nil
}

func (t *Terminal) notify(ctx context.Context, n notify.Notification) {
	if t.notifier != nil {
		t.notifier.Notify(ctx, n)
	}
}

func (t *Terminal) trigger(domains ...string) {
	if t.reloader == nil {
		return
	}
	for _, d := range domains {
		t.reloader.Trigger(d)
	}
}

func sameOrder(a, b orders.Order) bool {
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	return a.Source == b.Source && a.TableID == b.TableID
}

func sameTable(a, b tables.Table) bool {
	if a.ID != b.ID || a.Status != b.Status || a.Position != b.Position ||
		a.CurrentOrderID != b.CurrentOrderID || a.MergedInto != b.MergedInto ||
		len(a.MergedTables) != len(b.MergedTables) {
		return false
	}
	for i := range a.MergedTables {
		if a.MergedTables[i] != b.MergedTables[i] {
			return false
		}
	}
	return true
}

func occupy(reg tables.Registry, tableID, orderID string) tables.Registry {
	tbl, ok := reg.Find(tableID)
	if !ok {
		return reg
	}
	next, err := tbl.Occupy(orderID)
	if err != nil {
		return reg
	}
	return reg.With(next)
}

// reopen puts a billed table back to occupied, binding orderID when given.
func reopen(reg tables.Registry, tableID, orderID string) tables.Registry {
	tbl, ok := reg.Find(tableID)
	if !ok {
		return reg
	}
	if tbl.Is(tablestatus.Statuses.Bill) {
		if back, err := tbl.CancelBill(); err == nil {
			tbl = back
		}
	}
	if orderID != "" {
		if next, err := tbl.Occupy(orderID); err == nil {
			tbl = next
		}
	}
	return reg.With(tbl)
}

// settle frees the table and every table merged into it.
func settle(reg tables.Registry, tableID string) tables.Registry {
	root, ok := reg.Find(tableID)
	if !ok {
		return reg
	}
	released := make([]tables.Table, 0, len(root.MergedTables)+1)
	for _, id := range root.MergedTables {
		if m, ok := reg.Find(id); ok {
			released = append(released, m.Release(false))
		}
	}
	if done, err := root.Settle(); err == nil {
		released = append(released, done)
	}
	return reg.With(released...)
}
