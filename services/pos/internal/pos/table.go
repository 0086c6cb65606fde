package pos

import (
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

var (
	ErrTableNotFound     = errors.New("table not found")
	ErrInvalidTransition = errors.New("invalid table transition")
	ErrTableHasOrder     = errors.New("table already has an open order")
	ErrTargetNotEmpty    = errors.New("target table is not empty")
	ErrNotMerged         = errors.New("table is not part of a merge")
	ErrMergeConflict     = errors.New("more than one selected table has an open order")
)

type Section struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Color     string    `json:"color" bson:"color"`
	SortOrder int       `json:"sort_order" bson:"sort_order"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (s *Section) GetID() uuid.UUID {
	return s.ID
}

func (s *Section) ResourceType() string {
	return "section"
}

func (s *Section) SetID(id uuid.UUID) {
	s.ID = id
}

type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

type Table struct {
	ID             uuid.UUID   `json:"id" bson:"_id"`
	SectionID      uuid.UUID   `json:"section_id" bson:"section_id"`
	Name           string      `json:"name" bson:"name"`
	Capacity       int         `json:"capacity" bson:"capacity"`
	Status         string      `json:"status" bson:"status"`
	Position       Position    `json:"position" bson:"position"`
	CurrentOrderID *uuid.UUID  `json:"current_order_id,omitempty" bson:"current_order_id,omitempty"`
	MergedTables   []uuid.UUID `json:"merged_tables,omitempty" bson:"merged_tables,omitempty"`
	MergedInto     *uuid.UUID  `json:"merged_into,omitempty" bson:"merged_into,omitempty"`
	CreatedAt      time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" bson:"updated_at"`
}

func (t *Table) GetID() uuid.UUID {
	return t.ID
}

func (t *Table) ResourceType() string {
	return "table"
}

func (t *Table) SetID(id uuid.UUID) {
	t.ID = id
}

func NewTable() *Table {
	return &Table{
		ID:     aqm.GenerateNewID(),
		Status: tablestatus.Statuses.Empty.Code(),
	}
}

func (t *Table) EnsureID() {
	if t.ID == uuid.Nil {
		t.ID = aqm.GenerateNewID()
	}
}

func (t *Table) BeforeCreate() {
	t.EnsureID()
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
}

func (t *Table) BeforeUpdate() {
	t.UpdatedAt = time.Now()
}

func (t *Table) Is(status tablestatus.Status) bool {
	return t.Status == status.Code()
}

func (t *Table) HasOrder() bool {
	return t.CurrentOrderID != nil && *t.CurrentOrderID != uuid.Nil
}

func (t *Table) HoldsOrder(orderID uuid.UUID) bool {
	return t.HasOrder() && *t.CurrentOrderID == orderID
}

func (t *Table) IsMergeRoot() bool {
	return t.Is(tablestatus.Statuses.Merged) && len(t.MergedTables) > 0
}

func (t *Table) IsMergeMember() bool {
	return t.Is(tablestatus.Statuses.Merged) && t.MergedInto != nil
}

// Occupy binds orderID to the table. A table already bound to a different
// order refuses it; the first writer wins.
func (t *Table) Occupy(orderID uuid.UUID) error {
	if t.HasOrder() && !t.HoldsOrder(orderID) {
		return fmt.Errorf("%w: %s", ErrTableHasOrder, t.Name)
	}

	switch {
	case t.Is(tablestatus.Statuses.Empty), t.Is(tablestatus.Statuses.Reserved), t.Is(tablestatus.Statuses.Occupied):
		t.Status = tablestatus.Statuses.Occupied.Code()
	case t.IsMergeRoot():
	default:
		return t.transitionError(tablestatus.Statuses.Occupied)
	}

	id := orderID
	t.CurrentOrderID = &id
	t.BeforeUpdate()
	return nil
}

// Settle frees the table once its order is paid.
func (t *Table) Settle() error {
	switch {
	case t.Is(tablestatus.Statuses.Occupied), t.Is(tablestatus.Statuses.Bill), t.IsMergeRoot():
	default:
		return t.transitionError(tablestatus.Statuses.Empty)
	}
	t.Status = tablestatus.Statuses.Empty.Code()
	t.CurrentOrderID = nil
	t.MergedTables = nil
	t.BeforeUpdate()
	return nil
}

// Vacate drops the order binding when the order moves elsewhere.
func (t *Table) Vacate() {
	t.CurrentOrderID = nil
	if !t.IsMergeRoot() {
		t.Status = tablestatus.Statuses.Empty.Code()
	}
	t.BeforeUpdate()
}

func (t *Table) AbsorbInto(rootID uuid.UUID) error {
	if t.Is(tablestatus.Statuses.Bill) || t.IsMergeMember() || t.IsMergeRoot() {
		return t.transitionError(tablestatus.Statuses.Merged)
	}
	root := rootID
	t.Status = tablestatus.Statuses.Merged.Code()
	t.MergedInto = &root
	t.MergedTables = nil
	t.CurrentOrderID = nil
	t.BeforeUpdate()
	return nil
}

func (t *Table) BecomeRoot(members []uuid.UUID) error {
	if t.Is(tablestatus.Statuses.Bill) || t.IsMergeMember() || t.IsMergeRoot() {
		return t.transitionError(tablestatus.Statuses.Merged)
	}
	t.Status = tablestatus.Statuses.Merged.Code()
	t.MergedTables = append([]uuid.UUID(nil), members...)
	t.MergedInto = nil
	t.BeforeUpdate()
	return nil
}

// Release takes the table out of a merge. It stays occupied only while it
// still holds an order.
func (t *Table) Release() {
	t.MergedTables = nil
	t.MergedInto = nil
	if t.HasOrder() {
		t.Status = tablestatus.Statuses.Occupied.Code()
	} else {
		t.Status = tablestatus.Statuses.Empty.Code()
	}
	t.BeforeUpdate()
}

func (t *Table) transitionError(to tablestatus.Status) error {
	return fmt.Errorf("%w: table %s from %s to %s", ErrInvalidTransition, t.Name, t.Status, to.Code())
}
