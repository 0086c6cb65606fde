package tables

import (
	"errors"
	"fmt"

	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
)

var (
	ErrTableNotFound     = errors.New("table not found")
	ErrInvalidTransition = errors.New("invalid table transition")
	ErrTableNotEmpty     = errors.New("table is not empty")
	ErrLayoutLocked      = errors.New("layout edit mode is not active")
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Section is static floor metadata loaded once per terminal session.
type Section struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Table struct {
	ID             string   `json:"id"`
	SectionID      string   `json:"section_id"`
	Name           string   `json:"name"`
	Capacity       int      `json:"capacity"`
	Status         string   `json:"status"`
	Position       Position `json:"position"`
	CurrentOrderID string   `json:"current_order_id,omitempty"`
	MergedTables   []string `json:"merged_tables,omitempty"`
	MergedInto     string   `json:"merged_into,omitempty"`
}

func (t Table) Is(status tablestatus.Status) bool {
	return t.Status == status.Code()
}

func (t Table) HasOrder() bool {
	return t.CurrentOrderID != ""
}

// IsMergeRoot reports whether the table aggregates other tables.
func (t Table) IsMergeRoot() bool {
	return t.Is(tablestatus.Statuses.Merged) && len(t.MergedTables) > 0
}

// IsMergeMember reports whether the table was absorbed into a root.
func (t Table) IsMergeMember() bool {
	return t.Is(tablestatus.Statuses.Merged) && t.MergedInto != ""
}

// Occupy binds an order to the table.
func (t Table) Occupy(orderID string) (Table, error) {
	switch {
	case t.Is(tablestatus.Statuses.Empty), t.Is(tablestatus.Statuses.Reserved), t.Is(tablestatus.Statuses.Occupied):
		t.Status = tablestatus.Statuses.Occupied.Code()
	case t.IsMergeRoot():
		// a merge root keeps its merged status while billing flows through it
	default:
		return t, transitionError(t, tablestatus.Statuses.Occupied)
	}
	t.CurrentOrderID = orderID
	return t, nil
}

// RequestBill moves an occupied table into the bill state.
func (t Table) RequestBill() (Table, error) {
	if !t.Is(tablestatus.Statuses.Occupied) {
		return t, transitionError(t, tablestatus.Statuses.Bill)
	}
	t.Status = tablestatus.Statuses.Bill.Code()
	return t, nil
}

// CancelBill returns a table to occupied when payment did not go through.
func (t Table) CancelBill() (Table, error) {
	if !t.Is(tablestatus.Statuses.Bill) {
		return t, transitionError(t, tablestatus.Statuses.Occupied)
	}
	t.Status = tablestatus.Statuses.Occupied.Code()
	return t, nil
}

// Settle frees the table after payment.
func (t Table) Settle() (Table, error) {
	switch {
	case t.Is(tablestatus.Statuses.Occupied), t.Is(tablestatus.Statuses.Bill), t.IsMergeRoot():
	default:
		return t, transitionError(t, tablestatus.Statuses.Empty)
	}
	t.Status = tablestatus.Statuses.Empty.Code()
	t.CurrentOrderID = ""
	t.MergedTables = nil
	return t, nil
}

// AbsorbInto marks the table as a non-root member of a merge.
func (t Table) AbsorbInto(rootID string) (Table, error) {
	if t.Is(tablestatus.Statuses.Bill) || t.IsMergeMember() || t.IsMergeRoot() {
		return t, transitionError(t, tablestatus.Statuses.Merged)
	}
	t.Status = tablestatus.Statuses.Merged.Code()
	t.MergedInto = rootID
	t.MergedTables = nil
	t.CurrentOrderID = ""
	return t, nil
}

// BecomeRoot marks the table as the aggregation root of a merge. An existing
// root must be split first so its members are not orphaned.
func (t Table) BecomeRoot(others []string) (Table, error) {
	if t.Is(tablestatus.Statuses.Bill) || t.IsMergeMember() || t.IsMergeRoot() {
		return t, transitionError(t, tablestatus.Statuses.Merged)
	}
	t.Status = tablestatus.Statuses.Merged.Code()
	t.MergedTables = append([]string(nil), others...)
	t.MergedInto = ""
	return t, nil
}

// Release undoes a merge for this table. The resulting status depends only on
// whether the table still has items.
func (t Table) Release(hasItems bool) Table {
	t.MergedTables = nil
	t.MergedInto = ""
	if hasItems {
		t.Status = tablestatus.Statuses.Occupied.Code()
		return t
	}
	t.Status = tablestatus.Statuses.Empty.Code()
	t.CurrentOrderID = ""
	return t
}

func transitionError(t Table, to tablestatus.Status) error {
	return fmt.Errorf("%w: table %s from %s to %s", ErrInvalidTransition, t.ID, t.Status, to.Code())
}
