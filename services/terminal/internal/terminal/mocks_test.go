package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/terminal/internal/delivery"
	"github.com/appetiteclub/pos/services/terminal/internal/notify"
	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/appetiteclub/pos/services/terminal/internal/tables"
	"github.com/shopspring/decimal"
)

var errNotFound = errors.New("not found")

// fakeBackend keeps floor, orders and delivery in memory and behaves like the
// pos service for the calls the terminal makes.
type fakeBackend struct {
	mu sync.Mutex

	sections   []tables.Section
	tableIDs   []string
	tables     map[string]tables.Table
	orders     map[string]orders.Order
	deliveries []delivery.Order
	nextID     int
	calls      []string

	GetOrderErr   error
	PayErr        error
	ListTablesErr error
	// OnCreate runs before CreateOrder answers, outside the backend lock.
	OnCreate func()
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		sections: []tables.Section{{ID: "main", Name: "Main hall", Color: "#336699"}},
		tables:   map[string]tables.Table{},
		orders:   map[string]orders.Order{},
	}
	for i := 1; i <= 4; i++ {
		b.putTable(tables.Table{
			ID:        fmt.Sprintf("t%d", i),
			SectionID: "main",
			Name:      fmt.Sprintf("Table %d", i),
			Capacity:  4,
			Status:    tablestatus.Statuses.Empty.Code(),
		})
	}
	b.putTable(tables.Table{
		ID:             "t5",
		SectionID:      "main",
		Name:           "Table 5",
		Capacity:       2,
		Status:         tablestatus.Statuses.Occupied.Code(),
		CurrentOrderID: "o-5",
	})
	b.orders["o-5"] = orders.Order{
		ID:          "o-5",
		TableID:     "t5",
		Source:      orders.SourceTable,
		OrderNumber: 5,
		Status:      orders.StatusSent,
		Items: []orders.OrderItem{
			{ProductID: "tea", ProductName: "Tea", Price: decimal.NewFromInt(10), Quantity: 2, Portion: orders.PortionFull},
		},
	}
	return b
}

func (b *fakeBackend) putTable(t tables.Table) {
	if _, ok := b.tables[t.ID]; !ok {
		b.tableIDs = append(b.tableIDs, t.ID)
	}
	b.tables[t.ID] = t
}

func (b *fakeBackend) record(call string) {
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) Table(id string) tables.Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tables[id]
}

func (b *fakeBackend) Order(id string) (orders.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	return o, ok
}

func (b *fakeBackend) ListSections(ctx context.Context) ([]tables.Section, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ListSections")
	return append([]tables.Section(nil), b.sections...), nil
}

func (b *fakeBackend) ListTables(ctx context.Context) ([]tables.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ListTables")
	if b.ListTablesErr != nil {
		return nil, b.ListTablesErr
	}
	out := make([]tables.Table, 0, len(b.tableIDs))
	for _, id := range b.tableIDs {
		out = append(out, b.tables[id])
	}
	return out, nil
}

func (b *fakeBackend) ListOrders(ctx context.Context, status string) ([]orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ListOrders")
	var out []orders.Order
	for _, o := range b.orders {
		if status == "" || string(o.Status) == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *fakeBackend) UpdatePosition(ctx context.Context, id string, pos tables.Position) (tables.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("UpdatePosition")
	t, ok := b.tables[id]
	if !ok {
		return tables.Table{}, errNotFound
	}
	t.Position = pos
	b.tables[id] = t
	return t, nil
}

func (b *fakeBackend) Merge(ctx context.Context, rootID string, others []string) ([]tables.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Merge")
	root := b.tables[rootID]
	root.Status = tablestatus.Statuses.Merged.Code()
	root.MergedTables = append([]string(nil), others...)
	b.tables[rootID] = root
	out := []tables.Table{root}
	for _, id := range others {
		m := b.tables[id]
		m.Status = tablestatus.Statuses.Merged.Code()
		m.MergedInto = rootID
		m.CurrentOrderID = ""
		b.tables[id] = m
		out = append(out, m)
	}
	return out, nil
}

func (b *fakeBackend) Split(ctx context.Context, id string) ([]tables.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Split")
	root := b.tables[id]
	out := make([]tables.Table, 0, len(root.MergedTables)+1)
	for _, mid := range root.MergedTables {
		m := b.tables[mid]
		m.Status = tablestatus.Statuses.Empty.Code()
		m.MergedInto = ""
		b.tables[mid] = m
		out = append(out, m)
	}
	root.MergedTables = nil
	if root.CurrentOrderID != "" {
		root.Status = tablestatus.Statuses.Occupied.Code()
	} else {
		root.Status = tablestatus.Statuses.Empty.Code()
	}
	b.tables[id] = root
	return append(out, root), nil
}

func (b *fakeBackend) CreateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	if b.OnCreate != nil {
		b.OnCreate()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CreateOrder")
	b.nextID++
	o.ID = fmt.Sprintf("order-%d", b.nextID)
	o.OrderNumber = 100 + b.nextID
	o.Status = orders.StatusSent
	b.orders[o.ID] = o
	if t, ok := b.tables[o.TableID]; ok {
		if t.Status != tablestatus.Statuses.Merged.Code() {
			t.Status = tablestatus.Statuses.Occupied.Code()
		}
		t.CurrentOrderID = o.ID
		b.tables[t.ID] = t
	}
	return o, nil
}

func (b *fakeBackend) UpdateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("UpdateOrder")
	if _, ok := b.orders[o.ID]; !ok {
		return orders.Order{}, errNotFound
	}
	o.Status = orders.StatusSent
	b.orders[o.ID] = o
	return o, nil
}

func (b *fakeBackend) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("GetOrder")
	if b.GetOrderErr != nil {
		return orders.Order{}, b.GetOrderErr
	}
	o, ok := b.orders[id]
	if !ok {
		return orders.Order{}, errNotFound
	}
	return o, nil
}

func (b *fakeBackend) Pay(ctx context.Context, orderID string, req orders.PaymentRequest) (orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Pay")
	if b.PayErr != nil {
		return orders.Order{}, b.PayErr
	}
	o, ok := b.orders[orderID]
	if !ok {
		return orders.Order{}, errNotFound
	}
	o.Status = orders.StatusPaid
	o.Payment = &orders.Payment{Method: req.Method, Amount: req.Amount, Tip: req.Tip}
	b.orders[orderID] = o
	if t, ok := b.tables[o.TableID]; ok {
		t.Status = tablestatus.Statuses.Empty.Code()
		t.CurrentOrderID = ""
		b.tables[t.ID] = t
	}
	return o, nil
}

func (b *fakeBackend) TransferTable(ctx context.Context, fromID, toID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("TransferTable")
	from, to := b.tables[fromID], b.tables[toID]
	orderID := from.CurrentOrderID
	to.Status, to.CurrentOrderID = tablestatus.Statuses.Occupied.Code(), orderID
	from.Status, from.CurrentOrderID = tablestatus.Statuses.Empty.Code(), ""
	b.tables[fromID], b.tables[toID] = from, to
	if o, ok := b.orders[orderID]; ok {
		o.TableID = toID
		b.orders[orderID] = o
	}
	return nil
}

func (b *fakeBackend) SetDeliveries(list ...delivery.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = list
}

func (b *fakeBackend) LiveOrders(ctx context.Context) ([]delivery.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("LiveOrders")
	return append([]delivery.Order(nil), b.deliveries...), nil
}

func (b *fakeBackend) FetchFeeds(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("FetchFeeds")
	return len(b.deliveries), nil
}

func (b *fakeBackend) Accept(ctx context.Context, id string, prepMinutes int) (delivery.Order, error) {
	return b.setDeliveryStatus("Accept", id, delivery.StatusAccepted, func(o *delivery.Order) {
		o.PrepTimeMinutes = prepMinutes
	})
}

func (b *fakeBackend) Reject(ctx context.Context, id, reason string) (delivery.Order, error) {
	return b.setDeliveryStatus("Reject", id, delivery.StatusCancelled, func(o *delivery.Order) {
		o.RejectReason = reason
	})
}

func (b *fakeBackend) UpdateStatus(ctx context.Context, id, status string) (delivery.Order, error) {
	return b.setDeliveryStatus("UpdateStatus", id, status, nil)
}

func (b *fakeBackend) setDeliveryStatus(call, id, status string, edit func(*delivery.Order)) (delivery.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(call)
	for i := range b.deliveries {
		if b.deliveries[i].InternalID == id {
			b.deliveries[i].Status = status
			if edit != nil {
				edit(&b.deliveries[i])
			}
			return b.deliveries[i], nil
		}
	}
	return delivery.Order{}, errNotFound
}

// MockPublisher records every published envelope.
type MockPublisher struct {
	mu     sync.Mutex
	events []event.OrderUpdateEvent
}

func (m *MockPublisher) Publish(ctx context.Context, evt event.OrderUpdateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *MockPublisher) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Action
	}
	return out
}

// MockNotifier records notifications synchronously.
type MockNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (m *MockNotifier) Notify(ctx context.Context, n notify.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

func (m *MockNotifier) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, n := range m.sent {
		out[i] = n.Kind
	}
	return out
}

// MockReloader records triggered domains.
type MockReloader struct {
	mu       sync.Mutex
	triggers []string
}

func (m *MockReloader) Trigger(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, domain)
}

func (m *MockReloader) Triggers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.triggers...)
}

type MockPermissions struct {
	granted bool
}

func (m *MockPermissions) SetPermission(granted bool) {
	m.granted = granted
}

func (m *MockPermissions) Granted() bool {
	return m.granted
}

type harness struct {
	backend   *fakeBackend
	publisher *MockPublisher
	notifier  *MockNotifier
	terminal  *Terminal
}

func newHarness() *harness {
	b := newFakeBackend()
	h := &harness{backend: b, publisher: &MockPublisher{}, notifier: &MockNotifier{}}
	h.terminal = New(Deps{
		Store:       NewStore(State{}),
		Floor:       b,
		Orders:      b,
		TablesAPI:   b,
		OrdersAPI:   b,
		DeliveryAPI: b,
		Publisher:   h.publisher,
		Notifier:    h.notifier,
		Permissions: &MockPermissions{},
		Origin:      "terminal-test",
	})
	return h
}

func (h *harness) state() State {
	return h.terminal.Store().Snapshot()
}

func (h *harness) table(id string) tables.Table {
	t, _ := h.state().Floor.Find(id)
	return t
}

func product(id string, price int64) orders.Product {
	return orders.Product{ID: id, Name: id, Price: decimal.NewFromInt(price)}
}

func sentOrder(id string) orders.Order {
	o := orders.NewDraft(orders.SourceTakeaway, "")
	o.ID = id
	o.Status = orders.StatusSent
	return o
}
