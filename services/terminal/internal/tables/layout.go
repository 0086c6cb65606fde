package tables

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
)

// API is the remote surface the floor needs. The backend answers with the
// authoritative version of every table it touched.
type API interface {
	UpdatePosition(ctx context.Context, id string, pos Position) (Table, error)
	Merge(ctx context.Context, rootID string, others []string) ([]Table, error)
	Split(ctx context.Context, id string) ([]Table, error)
}

// Layout moves tables on the floor plan. Moves are refused unless edit mode
// was switched on explicitly.
type Layout struct {
	api    API
	logger aqm.Logger
}

func NewLayout(api API, logger aqm.Logger) *Layout {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Layout{api: api, logger: logger.With("component", "layout")}
}

func (l *Layout) Move(ctx context.Context, reg Registry, editMode bool, id string, pos Position) (Registry, error) {
	if !editMode {
		return reg, ErrLayoutLocked
	}
	t, ok := reg.Find(id)
	if !ok {
		return reg, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}

	saved, err := l.api.UpdatePosition(ctx, id, pos)
	if err != nil {
		return reg, fmt.Errorf("cannot move table %s: %w", t.Name, err)
	}
	if saved.ID == "" {
		saved = t
	}
	saved.Position = pos

	l.logger.Debug("table moved", "table_id", id, "x", pos.X, "y", pos.Y)
	return reg.With(saved), nil
}
