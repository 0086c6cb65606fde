package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockPublisher records every published message.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []PublishedMessage
}

type PublishedMessage struct {
	Topic   string
	Payload []byte
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, PublishedMessage{Topic: topic, Payload: msg})
	return nil
}

func (m *MockPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.Messages {
		if msg.Topic == topic {
			n++
		}
	}
	return n
}

type MockSectionRepo struct {
	mu       sync.Mutex
	sections []*Section
}

func (m *MockSectionRepo) Create(ctx context.Context, section *Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *section
	m.sections = append(m.sections, &s)
	return nil
}

func (m *MockSectionRepo) List(ctx context.Context) ([]*Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Section, 0, len(m.sections))
	for _, s := range m.sections {
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

// MockTableRepo hands out copies so handlers only change what they save.
type MockTableRepo struct {
	mu      sync.Mutex
	tables  map[uuid.UUID]*Table
	SaveErr error
}

func NewMockTableRepo() *MockTableRepo {
	return &MockTableRepo{tables: make(map[uuid.UUID]*Table)}
}

func (m *MockTableRepo) Create(ctx context.Context, table *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table.ID] = cloneTable(table)
	return nil
}

func (m *MockTableRepo) Get(ctx context.Context, id uuid.UUID) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, nil
	}
	return cloneTable(t), nil
}

func (m *MockTableRepo) GetByName(ctx context.Context, name string) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tables {
		if t.Name == name {
			return cloneTable(t), nil
		}
	}
	return nil, nil
}

func (m *MockTableRepo) List(ctx context.Context) ([]*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, cloneTable(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockTableRepo) Save(ctx context.Context, table *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if _, ok := m.tables[table.ID]; !ok {
		return ErrTableNotFound
	}
	m.tables[table.ID] = cloneTable(table)
	return nil
}

func cloneTable(t *Table) *Table {
	c := *t
	if t.MergedTables != nil {
		c.MergedTables = append([]uuid.UUID(nil), t.MergedTables...)
	}
	if t.CurrentOrderID != nil {
		id := *t.CurrentOrderID
		c.CurrentOrderID = &id
	}
	if t.MergedInto != nil {
		id := *t.MergedInto
		c.MergedInto = &id
	}
	return &c
}

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *MockOrderRepo) Create(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *order
	m.orders[order.ID] = &c
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (m *MockOrderRepo) List(ctx context.Context) ([]*Order, error) {
	return m.filter(func(*Order) bool { return true }), nil
}

func (m *MockOrderRepo) ListByStatus(ctx context.Context, status string) ([]*Order, error) {
	return m.filter(func(o *Order) bool { return o.Status == status }), nil
}

func (m *MockOrderRepo) filter(keep func(*Order) bool) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if keep(o) {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out
}

func (m *MockOrderRepo) Save(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	c := *order
	m.orders[order.ID] = &c
	return nil
}

func (m *MockOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

type MockDeliveryRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*DeliveryOrder
}

func NewMockDeliveryRepo() *MockDeliveryRepo {
	return &MockDeliveryRepo{orders: make(map[uuid.UUID]*DeliveryOrder)}
}

func (m *MockDeliveryRepo) Get(ctx context.Context, id uuid.UUID) (*DeliveryOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (m *MockDeliveryRepo) GetByExternalID(ctx context.Context, platform, externalID string) (*DeliveryOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Platform == platform && o.ExternalOrderID == externalID {
			c := *o
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MockDeliveryRepo) ListLive(ctx context.Context) ([]*DeliveryOrder, error) {
	all, _ := m.List(ctx)
	var out []*DeliveryOrder
	for _, o := range all {
		if o.IsLive() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockDeliveryRepo) List(ctx context.Context) ([]*DeliveryOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*DeliveryOrder, 0, len(m.orders))
	for _, o := range m.orders {
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalOrderID < out[j].ExternalOrderID })
	return out, nil
}

func (m *MockDeliveryRepo) Create(ctx context.Context, order *DeliveryOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *order
	m.orders[order.ID] = &c
	return nil
}

func (m *MockDeliveryRepo) Save(ctx context.Context, order *DeliveryOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return ErrDeliveryNotFound
	}
	c := *order
	m.orders[order.ID] = &c
	return nil
}

type MockCounter struct {
	mu  sync.Mutex
	seq map[string]int
}

func (m *MockCounter) Next(ctx context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil {
		m.seq = make(map[string]int)
	}
	m.seq[name]++
	return m.seq[name], nil
}

// MockFeeds stands in for the platform integrations.
type MockFeeds struct {
	mu        sync.Mutex
	Orders    []*DeliveryOrder
	FetchErr  error
	RemoteErr error
	Calls     []string
}

func (m *MockFeeds) Fetch(ctx context.Context) ([]*DeliveryOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*DeliveryOrder, 0, len(m.Orders))
	for _, o := range m.Orders {
		c := *o
		out = append(out, &c)
	}
	return out, m.FetchErr
}

func (m *MockFeeds) Accept(ctx context.Context, order *DeliveryOrder, prepMinutes int) error {
	return m.record("accept:" + order.ExternalOrderID)
}

func (m *MockFeeds) Reject(ctx context.Context, order *DeliveryOrder, reason string) error {
	return m.record("reject:" + order.ExternalOrderID + ":" + reason)
}

func (m *MockFeeds) ReportStatus(ctx context.Context, order *DeliveryOrder, status string) error {
	return m.record("status:" + order.ExternalOrderID + ":" + status)
}

func (m *MockFeeds) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoteErr != nil {
		return m.RemoteErr
	}
	m.Calls = append(m.Calls, call)
	return nil
}

type fixture struct {
	handler   *Handler
	router    chi.Router
	sections  *MockSectionRepo
	tables    *MockTableRepo
	orders    *MockOrderRepo
	delivery  *MockDeliveryRepo
	feeds     *MockFeeds
	publisher *MockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		sections:  &MockSectionRepo{},
		tables:    NewMockTableRepo(),
		orders:    NewMockOrderRepo(),
		delivery:  NewMockDeliveryRepo(),
		feeds:     &MockFeeds{},
		publisher: &MockPublisher{},
	}

	hd := HandlerDeps{
		Repos: Repos{
			SectionRepo:  f.sections,
			TableRepo:    f.tables,
			OrderRepo:    f.orders,
			DeliveryRepo: f.delivery,
			Counter:      &MockCounter{},
		},
		Feeds:     f.feeds,
		Publisher: f.publisher,
	}
	f.handler = NewHandler(hd, aqm.NewConfig(), nil)

	r := chi.NewRouter()
	f.handler.RegisterRoutes(r)
	f.router = r
	return f
}

func (f *fixture) addTable(t *testing.T, name string) *Table {
	t.Helper()
	table := NewTable()
	table.Name = name
	table.Capacity = 4
	table.BeforeCreate()
	if err := f.tables.Create(context.Background(), table); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return table
}

// addOpenOrder stores a sent order bound to table.
func (f *fixture) addOpenOrder(t *testing.T, table *Table, price int64, qty int) *Order {
	t.Helper()
	order := NewOrder()
	order.Source = SourceTable
	order.TableID = &table.ID
	order.Items = []OrderItem{{ProductID: "p1", ProductName: "Kebap", Price: decimal.NewFromInt(price), Quantity: qty, Portion: "full"}}
	order.BeforeCreate()
	if err := f.orders.Create(context.Background(), order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	stored, _ := f.tables.Get(context.Background(), table.ID)
	if err := stored.Occupy(order.ID); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if err := f.tables.Save(context.Background(), stored); err != nil {
		t.Fatalf("save table: %v", err)
	}
	*table = *stored
	return order
}

func (f *fixture) table(t *testing.T, id uuid.UUID) *Table {
	t.Helper()
	table, _ := f.tables.Get(context.Background(), id)
	if table == nil {
		t.Fatalf("table %s not found", id)
	}
	return table
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *Order {
	t.Helper()
	order, _ := f.orders.Get(context.Background(), id)
	if order == nil {
		t.Fatalf("order %s not found", id)
	}
	return order
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// decodeResponseData unwraps the data field of a success envelope.
func decodeResponseData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v (body %s)", err, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
