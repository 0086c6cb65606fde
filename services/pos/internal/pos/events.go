package pos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/appetiteclub/pos/pkg/event"
)

const tableEventSource = "pos-service"

// tableChange remembers the status a table had before a handler touched it.
type tableChange struct {
	table    *Table
	previous string
}

func (h *Handler) publishTableStatusChanged(ctx context.Context, table *Table, previousStatus, reason string) {
	if h.publisher == nil || table == nil {
		return
	}

	evt := event.TableStatusEvent{
		EventType:      event.EventTableStatusChanged,
		TableID:        table.ID.String(),
		Status:         table.Status,
		PreviousStatus: previousStatus,
		Reason:         reason,
		Source:         tableEventSource,
		OccurredAt:     time.Now().UTC(),
	}
	if table.HasOrder() {
		evt.OrderID = table.CurrentOrderID.String()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("cannot marshal table status event", "error", err, "table_id", table.ID.String())
		return
	}

	if err := h.publisher.Publish(ctx, event.TableStatusTopic, payload); err != nil {
		h.logger.Error("cannot publish table status event", "error", err, "table_id", table.ID.String())
	}
}

func (h *Handler) publishTableChanges(ctx context.Context, changes []tableChange, reason string) {
	for _, c := range changes {
		h.publishTableStatusChanged(ctx, c.table, c.previous, reason)
	}
}

// saveTables persists every changed table. It stops at the first failure;
// tables saved before it keep their new state.
func (h *Handler) saveTables(ctx context.Context, changes []tableChange) error {
	for _, c := range changes {
		if err := h.tableRepo.Save(ctx, c.table); err != nil {
			return err
		}
	}
	return nil
}

func tablesOf(changes []tableChange) []*Table {
	out := make([]*Table, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.table)
	}
	return out
}
