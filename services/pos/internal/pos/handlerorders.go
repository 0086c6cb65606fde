package pos

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const orderNumberSequence = "orders"

// ListOrders answers open (sent) orders unless a status is given; status=all
// lists everything.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	status := r.URL.Query().Get("status")

	var orders []*Order
	var err error

	switch status {
	case "all":
		orders, err = h.orderRepo.List(ctx)
	case "":
		orders, err = h.orderRepo.ListByStatus(ctx, OrderStatusSent)
	case OrderStatusSent, OrderStatusPaid:
		orders, err = h.orderRepo.ListByStatus(ctx, status)
	default:
		aqm.RespondError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	if err != nil {
		log.Error("error retrieving orders", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not retrieve orders")
		return
	}

	aqm.RespondCollection(w, orders, "order")
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, ok := h.loadOrder(w, ctx, log, id)
	if !ok {
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

// CreateOrder stores a terminal draft as a sent order, gives it the next
// order number and binds it to its table.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req OrderRequest
	if !h.decodePayload(w, r, log, &req, false) {
		return
	}

	if h.respondValidation(w, log, ValidateOrder(ctx, req)) {
		return
	}

	order := NewOrder()
	order.Source = req.Source
	order.Items = req.Items
	order.Notes = req.Notes
	order.Discount = req.Discount
	order.DeliveryRef = req.DeliveryRef

	var table *Table
	var previous string
	if req.Source == SourceTable {
		var ok bool
		table, ok = h.loadTable(w, ctx, log, uuid.MustParse(req.TableID))
		if !ok {
			return
		}
		previous = table.Status
		if err := table.Occupy(order.ID); err != nil {
			h.respondStateError(w, log, err, "Could not create order")
			return
		}
		order.TableID = &table.ID
	}

	number, err := h.counter.Next(ctx, orderNumberSequence)
	if err != nil {
		log.Error("cannot assign order number", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}
	order.OrderNumber = number
	order.BeforeCreate()

	if err := h.orderRepo.Create(ctx, order); err != nil {
		log.Error("cannot create order", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}

	if table != nil {
		if err := h.tableRepo.Save(ctx, table); err != nil {
			log.Error("cannot bind order to table", "error", err, "order_id", order.ID.String(), "table_id", table.ID.String())
			// a table order never outlives a failed bind
			if delErr := h.orderRepo.Delete(ctx, order.ID); delErr != nil {
				log.Error("cannot remove unbound order", "error", delErr, "order_id", order.ID.String())
			}
			aqm.RespondError(w, http.StatusInternalServerError, "Could not bind order to table")
			return
		}
		h.publishTableStatusChanged(ctx, table, previous, "order.created")
	}

	log.Info("order created", "order_id", order.ID.String(), "number", order.OrderNumber, "source", order.Source)

	links := aqm.RESTfulLinksFor(order)
	w.WriteHeader(http.StatusCreated)
	aqm.RespondSuccess(w, order, links...)
}

// UpdateOrder replaces the editable part of an open order. The table binding
// only changes through a transfer.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req OrderRequest
	if !h.decodePayload(w, r, log, &req, false) {
		return
	}

	order, ok := h.loadOrder(w, ctx, log, id)
	if !ok {
		return
	}

	// source and table come from the stored order
	req.Source = order.Source
	req.TableID = ""
	if order.TableID != nil {
		req.TableID = order.TableID.String()
	}
	if req.DeliveryRef == nil {
		req.DeliveryRef = order.DeliveryRef
	}
	if h.respondValidation(w, log, ValidateOrder(ctx, req)) {
		return
	}

	if order.IsPaid() {
		h.respondStateError(w, log, fmt.Errorf("%w: %s", ErrOrderPaid, id), "Could not update order")
		return
	}

	order.Items = req.Items
	order.Notes = req.Notes
	order.Discount = req.Discount
	order.BeforeUpdate()

	if err := h.orderRepo.Save(ctx, order); err != nil {
		log.Error("cannot update order", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update order")
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

// PayOrder records the settlement and frees the order's table, including any
// tables merged into it.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PayOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req PaymentRequest
	if !h.decodePayload(w, r, log, &req, false) {
		return
	}

	if h.respondValidation(w, log, ValidatePayment(ctx, req)) {
		return
	}

	order, ok := h.loadOrder(w, ctx, log, id)
	if !ok {
		return
	}

	if err := order.RecordPayment(req.Method, req.Amount, req.Tip); err != nil {
		h.respondStateError(w, log, fmt.Errorf("%w: %s", err, id), "Could not pay order")
		return
	}

	if !req.Amount.Equal(order.Total) {
		log.Info("payment amount differs from stored total", "order_id", id.String(), "amount", req.Amount.String(), "total", order.Total.String())
	}

	if err := h.orderRepo.Save(ctx, order); err != nil {
		log.Error("cannot save payment", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not pay order")
		return
	}

	if order.TableID != nil {
		if err := h.settleTable(ctx, *order.TableID, order.ID); err != nil {
			log.Error("order paid but table not settled", "error", err, "order_id", id.String(), "table_id", order.TableID.String())
		}
	}

	log.Info("order paid", "order_id", id.String(), "method", req.Method, "amount", req.Amount.String(), "tip", req.Tip.String())

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

// settleTable empties the table that holds orderID and releases its merge
// members. A table bound to another order is left alone.
func (h *Handler) settleTable(ctx context.Context, tableID, orderID uuid.UUID) error {
	root, err := h.tableRepo.Get(ctx, tableID)
	if err != nil {
		return err
	}
	if root == nil || !root.HoldsOrder(orderID) {
		return nil
	}

	changes := make([]tableChange, 0, len(root.MergedTables)+1)
	for _, memberID := range root.MergedTables {
		member, err := h.tableRepo.Get(ctx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			continue
		}
		previous := member.Status
		member.Release()
		changes = append(changes, tableChange{table: member, previous: previous})
	}

	previous := root.Status
	if err := root.Settle(); err != nil {
		return err
	}
	changes = append(changes, tableChange{table: root, previous: previous})

	if err := h.saveTables(ctx, changes); err != nil {
		return err
	}
	h.publishTableChanges(ctx, changes, "order.paid")
	return nil
}

func (h *Handler) loadOrder(w http.ResponseWriter, ctx context.Context, log aqm.Logger, id uuid.UUID) (*Order, bool) {
	order, err := h.orderRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load order")
		return nil, false
	}
	if order == nil {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return nil, false
	}
	return order, true
}
