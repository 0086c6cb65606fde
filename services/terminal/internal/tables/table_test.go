package tables

import (
	"errors"
	"testing"
)

func TestTableTransitions(t *testing.T) {
	tests := []struct {
		name       string
		table      Table
		apply      func(Table) (Table, error)
		wantStatus string
		wantErr    error
	}{
		{
			name:       "emptyToOccupied",
			table:      Table{ID: "t1", Status: "empty"},
			apply:      func(t Table) (Table, error) { return t.Occupy("o1") },
			wantStatus: "occupied",
		},
		{
			name:       "reservedToOccupied",
			table:      Table{ID: "t1", Status: "reserved"},
			apply:      func(t Table) (Table, error) { return t.Occupy("o1") },
			wantStatus: "occupied",
		},
		{
			name:    "billCannotBeOccupied",
			table:   Table{ID: "t1", Status: "bill", CurrentOrderID: "o1"},
			apply:   func(t Table) (Table, error) { return t.Occupy("o2") },
			wantErr: ErrInvalidTransition,
		},
		{
			name:       "occupiedToBill",
			table:      Table{ID: "t1", Status: "occupied", CurrentOrderID: "o1"},
			apply:      func(t Table) (Table, error) { return t.RequestBill() },
			wantStatus: "bill",
		},
		{
			name:    "emptyCannotRequestBill",
			table:   Table{ID: "t1", Status: "empty"},
			apply:   func(t Table) (Table, error) { return t.RequestBill() },
			wantErr: ErrInvalidTransition,
		},
		{
			name:       "billCancelled",
			table:      Table{ID: "t1", Status: "bill", CurrentOrderID: "o1"},
			apply:      func(t Table) (Table, error) { return t.CancelBill() },
			wantStatus: "occupied",
		},
		{
			name:       "billToEmpty",
			table:      Table{ID: "t1", Status: "bill", CurrentOrderID: "o1"},
			apply:      func(t Table) (Table, error) { return t.Settle() },
			wantStatus: "empty",
		},
		{
			name:    "emptyCannotSettle",
			table:   Table{ID: "t1", Status: "empty"},
			apply:   func(t Table) (Table, error) { return t.Settle() },
			wantErr: ErrInvalidTransition,
		},
		{
			name:       "occupiedAbsorbed",
			table:      Table{ID: "t2", Status: "occupied", CurrentOrderID: "o2"},
			apply:      func(t Table) (Table, error) { return t.AbsorbInto("t1") },
			wantStatus: "merged",
		},
		{
			name:    "billCannotBeAbsorbed",
			table:   Table{ID: "t2", Status: "bill", CurrentOrderID: "o2"},
			apply:   func(t Table) (Table, error) { return t.AbsorbInto("t1") },
			wantErr: ErrInvalidTransition,
		},
		{
			name:       "emptyBecomesRoot",
			table:      Table{ID: "t1", Status: "empty"},
			apply:      func(t Table) (Table, error) { return t.BecomeRoot([]string{"t2"}) },
			wantStatus: "merged",
		},
		{
			name:    "rootCannotBeRootedAgain",
			table:   Table{ID: "t1", Status: "merged", MergedTables: []string{"t2"}},
			apply:   func(t Table) (Table, error) { return t.BecomeRoot([]string{"t3"}) },
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.apply(tt.table)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if got.Status != tt.table.Status {
					t.Errorf("status changed on failed transition: %q", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestTableSettleClearsOrder(t *testing.T) {
	tbl := Table{ID: "t1", Status: "bill", CurrentOrderID: "o1"}

	settled, err := tbl.Settle()
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if settled.HasOrder() {
		t.Errorf("Settle() kept order %q", settled.CurrentOrderID)
	}
	if tbl.CurrentOrderID != "o1" {
		t.Error("Settle() mutated its receiver")
	}
}

func TestTableAbsorbedMemberHoldsNoOrder(t *testing.T) {
	tbl := Table{ID: "t2", Status: "occupied", CurrentOrderID: "o2"}

	member, err := tbl.AbsorbInto("t1")
	if err != nil {
		t.Fatalf("AbsorbInto() error = %v", err)
	}
	if member.HasOrder() {
		t.Error("merge member should not hold an order")
	}
	if !member.IsMergeMember() || member.IsMergeRoot() {
		t.Errorf("member flags wrong: member=%v root=%v", member.IsMergeMember(), member.IsMergeRoot())
	}
}

func TestTableRelease(t *testing.T) {
	tests := []struct {
		name       string
		hasItems   bool
		wantStatus string
		wantOrder  string
	}{
		{name: "withItemsBecomesOccupied", hasItems: true, wantStatus: "occupied", wantOrder: "o1"},
		{name: "withoutItemsBecomesEmpty", hasItems: false, wantStatus: "empty", wantOrder: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := Table{ID: "t1", Status: "merged", MergedTables: []string{"t2"}, CurrentOrderID: "o1"}

			got := root.Release(tt.hasItems)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.CurrentOrderID != tt.wantOrder {
				t.Errorf("order = %q, want %q", got.CurrentOrderID, tt.wantOrder)
			}
			if len(got.MergedTables) != 0 {
				t.Errorf("merged tables not cleared: %v", got.MergedTables)
			}
		})
	}
}
