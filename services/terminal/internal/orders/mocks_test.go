package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/appetiteclub/pos/pkg/event"
)

// MockAPI is a mock implementation of API for testing
type MockAPI struct {
	mu     sync.Mutex
	calls  []string
	nextID int

	CreateOrderFunc   func(ctx context.Context, o Order) (Order, error)
	UpdateOrderFunc   func(ctx context.Context, o Order) (Order, error)
	GetOrderFunc      func(ctx context.Context, id string) (Order, error)
	PayFunc           func(ctx context.Context, orderID string, req PaymentRequest) (Order, error)
	TransferTableFunc func(ctx context.Context, fromTableID, toTableID string) error
}

func (m *MockAPI) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockAPI) CreateOrder(ctx context.Context, o Order) (Order, error) {
	m.record("CreateOrder")
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, o)
	}
	m.mu.Lock()
	m.nextID++
	n := m.nextID
	m.mu.Unlock()
	o.ID = fmt.Sprintf("order-%d", n)
	o.OrderNumber = 100 + n
	return o, nil
}

func (m *MockAPI) UpdateOrder(ctx context.Context, o Order) (Order, error) {
	m.record("UpdateOrder")
	if m.UpdateOrderFunc != nil {
		return m.UpdateOrderFunc(ctx, o)
	}
	return o, nil
}

func (m *MockAPI) GetOrder(ctx context.Context, id string) (Order, error) {
	m.record("GetOrder")
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}
	return Order{ID: id}, nil
}

func (m *MockAPI) Pay(ctx context.Context, orderID string, req PaymentRequest) (Order, error) {
	m.record("Pay")
	if m.PayFunc != nil {
		return m.PayFunc(ctx, orderID, req)
	}
	return Order{ID: orderID}, nil
}

func (m *MockAPI) TransferTable(ctx context.Context, fromTableID, toTableID string) error {
	m.record("TransferTable")
	if m.TransferTableFunc != nil {
		return m.TransferTableFunc(ctx, fromTableID, toTableID)
	}
	return nil
}

// MockPublisher records published envelopes
type MockPublisher struct {
	mu     sync.Mutex
	events []event.OrderUpdateEvent

	PublishFunc func(ctx context.Context, evt event.OrderUpdateEvent) error
}

func (m *MockPublisher) Publish(ctx context.Context, evt event.OrderUpdateEvent) error {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, evt)
	}
	return nil
}

func (m *MockPublisher) Events() []event.OrderUpdateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event.OrderUpdateEvent(nil), m.events...)
}
