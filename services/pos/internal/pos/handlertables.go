package pos

import (
	"context"
	"fmt"
	"net/http"

	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListSections")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	sections, err := h.sectionRepo.List(ctx)
	if err != nil {
		log.Error("error retrieving sections", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not retrieve sections")
		return
	}

	aqm.RespondCollection(w, sections, "section")
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTables")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	tables, err := h.tableRepo.List(ctx)
	if err != nil {
		log.Error("error retrieving tables", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not retrieve tables")
		return
	}

	aqm.RespondCollection(w, tables, "table")
}

func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdatePosition")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req PositionRequest
	if !h.decodePayload(w, r, log, &req, false) {
		return
	}

	if h.respondValidation(w, log, ValidatePosition(ctx, req)) {
		return
	}

	table, ok := h.loadTable(w, ctx, log, id)
	if !ok {
		return
	}

	table.Position = Position{X: req.X, Y: req.Y}
	table.BeforeUpdate()

	if err := h.tableRepo.Save(ctx, table); err != nil {
		log.Error("cannot save table position", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update table")
		return
	}

	aqm.RespondSuccess(w, table, aqm.RESTfulLinksFor(table)...)
}

// MergeTables makes root the billing table for the others. At most one of the
// selected tables may hold an order; when that is a member, the order moves
// to the root.
func (h *Handler) MergeTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MergeTables")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req MergeRequest
	if !h.decodePayload(w, r, log, &req, false) {
		return
	}

	if h.respondValidation(w, log, ValidateMerge(ctx, req)) {
		return
	}

	root, ok := h.loadTable(w, ctx, log, uuid.MustParse(req.RootID))
	if !ok {
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.TableIDs))
	members := make([]*Table, 0, len(req.TableIDs))
	for _, raw := range req.TableIDs {
		member, ok := h.loadTable(w, ctx, log, uuid.MustParse(raw))
		if !ok {
			return
		}
		memberIDs = append(memberIDs, member.ID)
		members = append(members, member)
	}

	var holders []*Table
	for _, t := range append([]*Table{root}, members...) {
		if t.HasOrder() {
			holders = append(holders, t)
		}
	}
	if len(holders) > 1 {
		h.respondStateError(w, log, fmt.Errorf("%w: %d tables", ErrMergeConflict, len(holders)), "Could not merge tables")
		return
	}

	var movedOrder *uuid.UUID
	if len(holders) == 1 && holders[0] != root {
		id := *holders[0].CurrentOrderID
		movedOrder = &id
	}

	changes := make([]tableChange, 0, len(members)+1)
	for _, m := range members {
		previous := m.Status
		if err := m.AbsorbInto(root.ID); err != nil {
			h.respondStateError(w, log, err, "Could not merge tables")
			return
		}
		changes = append(changes, tableChange{table: m, previous: previous})
	}

	rootPrevious := root.Status
	if err := root.BecomeRoot(memberIDs); err != nil {
		h.respondStateError(w, log, err, "Could not merge tables")
		return
	}
	if movedOrder != nil {
		if err := h.rebindOrder(ctx, *movedOrder, root.ID); err != nil {
			h.respondStateError(w, log, err, "Could not move order to root table")
			return
		}
		root.CurrentOrderID = movedOrder
	}
	changes = append(changes, tableChange{table: root, previous: rootPrevious})

	if err := h.saveTables(ctx, changes); err != nil {
		log.Error("cannot save merged tables", "error", err, "root", root.ID.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not merge tables")
		return
	}

	h.publishTableChanges(ctx, changes, "tables.merged")
	log.Info("tables merged", "root", root.ID.String(), "members", len(members))

	aqm.RespondCollection(w, tablesOf(changes), "table")
}

// SplitTable dissolves the merge id belongs to, whether id is the root or a
// member.
func (h *Handler) SplitTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SplitTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	root, ok := h.loadTable(w, ctx, log, id)
	if !ok {
		return
	}
	if root.IsMergeMember() {
		root, ok = h.loadTable(w, ctx, log, *root.MergedInto)
		if !ok {
			return
		}
	}
	if !root.IsMergeRoot() {
		h.respondStateError(w, log, fmt.Errorf("%w: %s", ErrNotMerged, root.Name), "Could not split table")
		return
	}

	changes := make([]tableChange, 0, len(root.MergedTables)+1)
	for _, memberID := range root.MergedTables {
		member, err := h.tableRepo.Get(ctx, memberID)
		if err != nil {
			log.Error("cannot load merge member", "error", err, "id", memberID.String())
			aqm.RespondError(w, http.StatusInternalServerError, "Could not split table")
			return
		}
		if member == nil {
			log.Info("merge member no longer exists", "id", memberID.String())
			continue
		}
		previous := member.Status
		member.Release()
		changes = append(changes, tableChange{table: member, previous: previous})
	}

	rootPrevious := root.Status
	root.Release()
	changes = append(changes, tableChange{table: root, previous: rootPrevious})

	if err := h.saveTables(ctx, changes); err != nil {
		log.Error("cannot save split tables", "error", err, "root", root.ID.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not split table")
		return
	}

	h.publishTableChanges(ctx, changes, "tables.split")
	log.Info("tables split", "root", root.ID.String(), "released", len(changes))

	aqm.RespondCollection(w, tablesOf(changes), "table")
}

// TransferTable moves the open order of a table onto an empty one.
func (h *Handler) TransferTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.TransferTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req TransferRequest
	if !h.decodePayload(w, r, log, &req, false) {
		return
	}

	if h.respondValidation(w, log, ValidateTransfer(ctx, id, req)) {
		return
	}

	from, ok := h.loadTable(w, ctx, log, id)
	if !ok {
		return
	}
	to, ok := h.loadTable(w, ctx, log, uuid.MustParse(req.TargetTableID))
	if !ok {
		return
	}

	if from.IsMergeRoot() || from.IsMergeMember() {
		h.respondStateError(w, log, from.transitionError(tablestatus.Statuses.Empty), "Could not transfer order")
		return
	}
	if !from.HasOrder() {
		aqm.RespondError(w, http.StatusNotFound, "Table has no open order")
		return
	}
	if !to.Is(tablestatus.Statuses.Empty) {
		h.respondStateError(w, log, fmt.Errorf("%w: %s is %s", ErrTargetNotEmpty, to.Name, to.Status), "Could not transfer order")
		return
	}

	orderID := *from.CurrentOrderID
	fromPrevious, toPrevious := from.Status, to.Status
	if err := to.Occupy(orderID); err != nil {
		h.respondStateError(w, log, err, "Could not transfer order")
		return
	}
	from.Vacate()

	if err := h.rebindOrder(ctx, orderID, to.ID); err != nil {
		h.respondStateError(w, log, err, "Could not transfer order")
		return
	}

	changes := []tableChange{{table: to, previous: toPrevious}, {table: from, previous: fromPrevious}}
	if err := h.saveTables(ctx, changes); err != nil {
		log.Error("cannot save transferred tables", "error", err, "from", from.ID.String(), "to", to.ID.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not transfer order")
		return
	}

	h.publishTableChanges(ctx, changes, "order.transferred")
	log.Info("order transferred", "order_id", orderID.String(), "from", from.ID.String(), "to", to.ID.String())

	aqm.RespondCollection(w, tablesOf(changes), "table")
}

func (h *Handler) loadTable(w http.ResponseWriter, ctx context.Context, log aqm.Logger, id uuid.UUID) (*Table, bool) {
	table, err := h.tableRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading table", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load table")
		return nil, false
	}
	if table == nil {
		aqm.RespondError(w, http.StatusNotFound, "Table not found")
		return nil, false
	}
	return table, true
}

// rebindOrder points an open order at another table.
func (h *Handler) rebindOrder(ctx context.Context, orderID, tableID uuid.UUID) error {
	order, err := h.orderRepo.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("cannot load order %s: %w", orderID, err)
	}
	if order == nil {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if order.IsPaid() {
		return fmt.Errorf("%w: %s", ErrOrderPaid, orderID)
	}

	id := tableID
	order.TableID = &id
	order.BeforeUpdate()
	if err := h.orderRepo.Save(ctx, order); err != nil {
		return fmt.Errorf("cannot save order %s: %w", orderID, err)
	}
	return nil
}
