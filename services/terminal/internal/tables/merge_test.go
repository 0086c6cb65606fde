package tables

import (
	"context"
	"errors"
	"testing"
)

func TestCoordinatorMergeRejectsSingleTable(t *testing.T) {
	api := &MockAPI{}
	c := NewCoordinator(api, nil)
	reg := floor()

	got, err := c.Merge(context.Background(), reg, "t1", nil)
	if !errors.Is(err, ErrMergeNeedsTwoTables) {
		t.Fatalf("Merge() error = %v, want %v", err, ErrMergeNeedsTwoTables)
	}
	if len(api.Calls()) != 0 {
		t.Errorf("backend was called: %v", api.Calls())
	}
	if tbl, _ := got.Find("t1"); tbl.Status != "empty" {
		t.Errorf("registry changed on rejected merge: %q", tbl.Status)
	}
}

func TestCoordinatorMergeLocalValidation(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		others  []string
		wantErr error
	}{
		{name: "rootListedAsMember", root: "t1", others: []string{"t1"}, wantErr: ErrMergeDuplicate},
		{name: "duplicateMember", root: "t1", others: []string{"t2", "t2"}, wantErr: ErrMergeDuplicate},
		{name: "unknownMember", root: "t1", others: []string{"nope"}, wantErr: ErrTableNotFound},
		{name: "memberAwaitingBill", root: "t1", others: []string{"t4"}, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &MockAPI{}
			c := NewCoordinator(api, nil)

			_, err := c.Merge(context.Background(), floor(), tt.root, tt.others)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Merge() error = %v, want %v", err, tt.wantErr)
			}
			if len(api.Calls()) != 0 {
				t.Errorf("backend was called: %v", api.Calls())
			}
		})
	}
}

func TestCoordinatorMerge(t *testing.T) {
	var gotRoot string
	var gotOthers []string
	api := &MockAPI{
		MergeFunc: func(ctx context.Context, rootID string, others []string) ([]Table, error) {
			gotRoot, gotOthers = rootID, others
			return nil, nil
		},
	}
	c := NewCoordinator(api, nil)

	reg, err := c.Merge(context.Background(), floor(), "t2", []string{"t1", "t3"})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if gotRoot != "t2" || len(gotOthers) != 2 {
		t.Errorf("backend got root=%q others=%v", gotRoot, gotOthers)
	}

	root, _ := reg.Find("t2")
	if !root.IsMergeRoot() {
		t.Fatalf("t2 is not a merge root: %+v", root)
	}
	if root.CurrentOrderID != "o2" {
		t.Errorf("root lost its order: %q", root.CurrentOrderID)
	}
	for _, id := range []string{"t1", "t3"} {
		m, _ := reg.Find(id)
		if m.Status != "merged" || m.MergedInto != "t2" {
			t.Errorf("%s = %+v, want merged into t2", id, m)
		}
	}
}

func TestCoordinatorMergeKeepsExistingRoot(t *testing.T) {
	api := &MockAPI{}
	c := NewCoordinator(api, nil)
	reg := floor().With(
		Table{ID: "t1", SectionID: "s-main", Name: "T1", Status: "merged", MergedTables: []string{"t3"}},
		Table{ID: "t3", SectionID: "s-main", Name: "T3", Status: "merged", MergedInto: "t1"},
	)

	got, err := c.Merge(context.Background(), reg, "t1", []string{"t5"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Merge() error = %v, want %v", err, ErrInvalidTransition)
	}
	if len(api.Calls()) != 0 {
		t.Errorf("backend was called: %v", api.Calls())
	}
	root, _ := got.Find("t1")
	if len(root.MergedTables) != 1 || root.MergedTables[0] != "t3" {
		t.Errorf("root members = %v, want [t3]", root.MergedTables)
	}
}

func TestCoordinatorMergeBackendRefusal(t *testing.T) {
	refusal := errors.New("conflicting session")
	api := &MockAPI{
		MergeFunc: func(ctx context.Context, rootID string, others []string) ([]Table, error) {
			return nil, refusal
		},
	}
	c := NewCoordinator(api, nil)
	reg := floor()

	got, err := c.Merge(context.Background(), reg, "t1", []string{"t2"})
	if !errors.Is(err, refusal) {
		t.Fatalf("Merge() error = %v, want %v", err, refusal)
	}
	if tbl, _ := got.Find("t2"); tbl.Status != "occupied" {
		t.Errorf("t2 status = %q after refusal", tbl.Status)
	}
}

func TestCoordinatorSplit(t *testing.T) {
	api := &MockAPI{}
	c := NewCoordinator(api, nil)
	reg, err := c.Merge(context.Background(), floor(), "t2", []string{"t1", "t3"})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	withItems := map[string]bool{"t2": true, "t3": true}
	reg, err = c.Split(context.Background(), reg, "t1", func(id string) bool { return withItems[id] })
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := map[string]string{"t1": "empty", "t2": "occupied", "t3": "occupied"}
	for id, status := range want {
		tbl, _ := reg.Find(id)
		if tbl.Status != status {
			t.Errorf("%s status = %q, want %q", id, tbl.Status, status)
		}
		if len(tbl.MergedTables) != 0 || tbl.MergedInto != "" {
			t.Errorf("%s still linked: %+v", id, tbl)
		}
	}
}

func TestCoordinatorSplitUnmerged(t *testing.T) {
	api := &MockAPI{}
	c := NewCoordinator(api, nil)

	_, err := c.Split(context.Background(), floor(), "t1", nil)
	if !errors.Is(err, ErrNotMerged) {
		t.Fatalf("Split() error = %v, want %v", err, ErrNotMerged)
	}
	if len(api.Calls()) != 0 {
		t.Errorf("backend was called: %v", api.Calls())
	}
}

func TestLayoutMove(t *testing.T) {
	tests := []struct {
		name     string
		editMode bool
		id       string
		wantErr  error
		wantCall bool
	}{
		{name: "lockedLayout", editMode: false, id: "t1", wantErr: ErrLayoutLocked},
		{name: "unknownTable", editMode: true, id: "nope", wantErr: ErrTableNotFound},
		{name: "moves", editMode: true, id: "t1", wantCall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &MockAPI{}
			l := NewLayout(api, nil)
			pos := Position{X: 120, Y: 48}

			reg, err := l.Move(context.Background(), floor(), tt.editMode, tt.id, pos)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Move() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Move() error = %v", err)
			}

			if called := len(api.Calls()) > 0; called != tt.wantCall {
				t.Errorf("backend called = %v, want %v", called, tt.wantCall)
			}
			if tt.wantCall {
				tbl, _ := reg.Find(tt.id)
				if tbl.Position != pos {
					t.Errorf("position = %+v, want %+v", tbl.Position, pos)
				}
			}
		})
	}
}
