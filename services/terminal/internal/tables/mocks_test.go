package tables

import (
	"context"
	"sync"
)

// MockAPI is a mock implementation of API for testing
type MockAPI struct {
	mu    sync.Mutex
	calls []string

	UpdatePositionFunc func(ctx context.Context, id string, pos Position) (Table, error)
	MergeFunc          func(ctx context.Context, rootID string, others []string) ([]Table, error)
	SplitFunc          func(ctx context.Context, id string) ([]Table, error)
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

func (m *MockAPI) UpdatePosition(ctx context.Context, id string, pos Position) (Table, error) {
	m.record("UpdatePosition")
	if m.UpdatePositionFunc != nil {
		return m.UpdatePositionFunc(ctx, id, pos)
	}
	return Table{}, nil
}

func (m *MockAPI) Merge(ctx context.Context, rootID string, others []string) ([]Table, error) {
	m.record("Merge")
	if m.MergeFunc != nil {
		return m.MergeFunc(ctx, rootID, others)
	}
	return nil, nil
}

func (m *MockAPI) Split(ctx context.Context, id string) ([]Table, error) {
	m.record("Split")
	if m.SplitFunc != nil {
		return m.SplitFunc(ctx, id)
	}
	return nil, nil
}

func floor() Registry {
	sections := []Section{
		{ID: "s-main", Name: "Main hall", Color: "#2f855a"},
		{ID: "s-terrace", Name: "Terrace", Color: "#c05621"},
	}
	tables := []Table{
		{ID: "t1", SectionID: "s-main", Name: "T1", Capacity: 4, Status: "empty"},
		{ID: "t2", SectionID: "s-main", Name: "T2", Capacity: 2, Status: "occupied", CurrentOrderID: "o2"},
		{ID: "t3", SectionID: "s-main", Name: "T3", Capacity: 6, Status: "empty"},
		{ID: "t4", SectionID: "s-terrace", Name: "T4", Capacity: 4, Status: "bill", CurrentOrderID: "o4"},
		{ID: "t5", SectionID: "s-terrace", Name: "T5", Capacity: 4, Status: "reserved"},
	}
	return NewRegistry(sections, tables)
}
