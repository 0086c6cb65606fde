package delivery

import (
	"context"
	"sync"
)

// MockAPI is a mock implementation of API for testing
type MockAPI struct {
	mu    sync.Mutex
	calls []string

	LiveOrdersFunc   func(ctx context.Context) ([]Order, error)
	FetchFeedsFunc   func(ctx context.Context) (int, error)
	AcceptFunc       func(ctx context.Context, id string, prepMinutes int) (Order, error)
	RejectFunc       func(ctx context.Context, id, reason string) (Order, error)
	UpdateStatusFunc func(ctx context.Context, id, status string) (Order, error)
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

func (m *MockAPI) LiveOrders(ctx context.Context) ([]Order, error) {
	m.record("LiveOrders")
	if m.LiveOrdersFunc != nil {
		return m.LiveOrdersFunc(ctx)
	}
	return nil, nil
}

func (m *MockAPI) FetchFeeds(ctx context.Context) (int, error) {
	m.record("FetchFeeds")
	if m.FetchFeedsFunc != nil {
		return m.FetchFeedsFunc(ctx)
	}
	return 0, nil
}

func (m *MockAPI) Accept(ctx context.Context, id string, prepMinutes int) (Order, error) {
	m.record("Accept")
	if m.AcceptFunc != nil {
		return m.AcceptFunc(ctx, id, prepMinutes)
	}
	return Order{}, nil
}

func (m *MockAPI) Reject(ctx context.Context, id, reason string) (Order, error) {
	m.record("Reject")
	if m.RejectFunc != nil {
		return m.RejectFunc(ctx, id, reason)
	}
	return Order{}, nil
}

func (m *MockAPI) UpdateStatus(ctx context.Context, id, status string) (Order, error) {
	m.record("UpdateStatus")
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return Order{}, nil
}

func newOrders(statuses ...string) []Order {
	out := make([]Order, len(statuses))
	for i, s := range statuses {
		out[i] = Order{InternalID: string(rune('a' + i)), Platform: "getir", ExternalOrderID: "ext-" + string(rune('a'+i)), Status: s}
	}
	return out
}
