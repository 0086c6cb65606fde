package tables

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquamarinepk/aqm"
)

var (
	ErrMergeNeedsTwoTables = errors.New("merge needs at least two tables")
	ErrMergeDuplicate      = errors.New("table selected more than once")
	ErrNotMerged           = errors.New("table is not part of a merge")
)

// ItemLookup reports whether a table still carries order items.
type ItemLookup func(tableID string) bool

// Coordinator combines tables into one billing unit and separates them again.
type Coordinator struct {
	api    API
	logger aqm.Logger
}

func NewCoordinator(api API, logger aqm.Logger) *Coordinator {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Coordinator{api: api, logger: logger.With("component", "merge")}
}

// Merge makes rootID the billing root for others. Selections with fewer than
// two tables are refused before the backend is contacted.
func (c *Coordinator) Merge(ctx context.Context, reg Registry, rootID string, others []string) (Registry, error) {
	if len(others) < 1 {
		return reg, ErrMergeNeedsTwoTables
	}

	root, ok := reg.Find(rootID)
	if !ok {
		return reg, fmt.Errorf("%w: %s", ErrTableNotFound, rootID)
	}

	seen := map[string]bool{rootID: true}
	members := make([]Table, 0, len(others))
	for _, id := range others {
		if seen[id] {
			return reg, fmt.Errorf("%w: %s", ErrMergeDuplicate, id)
		}
		seen[id] = true
		t, ok := reg.Find(id)
		if !ok {
			return reg, fmt.Errorf("%w: %s", ErrTableNotFound, id)
		}
		absorbed, err := t.AbsorbInto(rootID)
		if err != nil {
			return reg, err
		}
		members = append(members, absorbed)
	}

	root, err := root.BecomeRoot(others)
	if err != nil {
		return reg, err
	}

	remote, err := c.api.Merge(ctx, rootID, others)
	if err != nil {
		return reg, fmt.Errorf("merge refused: %w", err)
	}

	next := reg.With(append(members, root)...)
	if len(remote) > 0 {
		next = next.With(remote...)
	}

	c.logger.Info("tables merged", "root", rootID, "members", len(others))
	return next, nil
}

// Split dissolves the merge that id belongs to. Each released table becomes
// occupied if it still has items and empty otherwise.
func (c *Coordinator) Split(ctx context.Context, reg Registry, id string, hasItems ItemLookup) (Registry, error) {
	root, ok := reg.ResolveRoot(id)
	if !ok {
		return reg, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	if !root.IsMergeRoot() {
		return reg, fmt.Errorf("%w: %s", ErrNotMerged, id)
	}
	if hasItems == nil {
		hasItems = func(string) bool { return false }
	}

	remote, err := c.api.Split(ctx, root.ID)
	if err != nil {
		return reg, fmt.Errorf("split refused: %w", err)
	}

	released := make([]Table, 0, len(root.MergedTables)+1)
	for _, memberID := range root.MergedTables {
		m, ok := reg.Find(memberID)
		if !ok {
			continue
		}
		released = append(released, m.Release(hasItems(memberID)))
	}
	released = append(released, root.Release(root.HasOrder() && hasItems(root.ID)))

	next := reg.With(released...)
	if len(remote) > 0 {
		next = next.With(remote...)
	}

	c.logger.Info("tables split", "root", root.ID, "released", len(released))
	return next, nil
}
