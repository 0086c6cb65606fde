package pos

import (
	"context"
	"fmt"
	"net/http"

	"github.com/appetiteclub/pos/pkg/enums/platform"
	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

type fetchResult struct {
	Upserted int `json:"upserted"`
}

func (h *Handler) ListDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListDelivery")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var orders []*DeliveryOrder
	var err error

	if r.URL.Query().Get("live") == "true" {
		orders, err = h.deliveryRepo.ListLive(ctx)
	} else {
		orders, err = h.deliveryRepo.List(ctx)
	}

	if err != nil {
		log.Error("error retrieving delivery orders", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not retrieve delivery orders")
		return
	}

	aqm.RespondCollection(w, orders, "delivery-order")
}

// FetchDelivery pulls the platform feeds and stores what they returned. When
// some platforms fail, the orders of the others are still stored.
func (h *Handler) FetchDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.FetchDelivery")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if h.feeds == nil {
		aqm.RespondSuccess(w, fetchResult{})
		return
	}

	fetched, fetchErr := h.feeds.Fetch(ctx)
	if fetchErr != nil && len(fetched) == 0 {
		log.Error("cannot fetch delivery feeds", "error", fetchErr)
		aqm.RespondError(w, http.StatusBadGateway, "Could not fetch delivery feeds")
		return
	}

	written, err := SyncDeliveryOrders(ctx, h.deliveryRepo, fetched)
	if err != nil {
		log.Error("cannot store delivery orders", "error", err, "written", written)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not store delivery orders")
		return
	}

	if fetchErr != nil {
		log.Info("delivery feeds partially fetched", "error", fetchErr, "written", written)
	}

	aqm.RespondSuccess(w, fetchResult{Upserted: written})
}

func (h *Handler) AcceptDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AcceptDelivery")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req AcceptRequest
	if !h.decodePayload(w, r, log, &req, true) {
		return
	}

	if h.respondValidation(w, log, ValidateAccept(ctx, req)) {
		return
	}

	order, ok := h.loadDelivery(w, ctx, log, id)
	if !ok {
		return
	}

	prep := req.PrepTimeMinutes
	if prep == 0 {
		prep = profileOf(order).DefaultPrepMinutes
	}

	h.advanceDelivery(w, ctx, log, order, DeliveryAccepted, func(ctx context.Context) error {
		if h.feeds == nil {
			return nil
		}
		return h.feeds.Accept(ctx, order, prep)
	}, func() {
		order.PrepTimeMinutes = prep
	})
}

func (h *Handler) RejectDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RejectDelivery")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req RejectRequest
	if !h.decodePayload(w, r, log, &req, true) {
		return
	}

	order, ok := h.loadDelivery(w, ctx, log, id)
	if !ok {
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = profileOf(order).DefaultRejectReason
	}

	h.advanceDelivery(w, ctx, log, order, DeliveryCancelled, func(ctx context.Context) error {
		if h.feeds == nil {
			return nil
		}
		return h.feeds.Reject(ctx, order, reason)
	}, func() {
		order.RejectReason = reason
	})
}

func (h *Handler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateDeliveryStatus")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req DeliveryStatusRequest
	if !h.decodePayload(w, r, log, &req, false) {
		return
	}

	if h.respondValidation(w, log, ValidateDeliveryStatus(ctx, req)) {
		return
	}

	order, ok := h.loadDelivery(w, ctx, log, id)
	if !ok {
		return
	}

	h.advanceDelivery(w, ctx, log, order, req.Status, func(ctx context.Context) error {
		if h.feeds == nil {
			return nil
		}
		return h.feeds.ReportStatus(ctx, order, req.Status)
	}, nil)
}

// advanceDelivery checks the transition locally, tells the platform and only
// then stores the new status. A platform refusal leaves the order untouched.
func (h *Handler) advanceDelivery(w http.ResponseWriter, ctx context.Context, log aqm.Logger, order *DeliveryOrder, status string, notify func(context.Context) error, apply func()) {
	if !order.CanMoveTo(status) {
		err := fmt.Errorf("%w: %s from %s to %s", ErrInvalidDeliveryTransition, order.ExternalOrderID, order.Status, status)
		h.respondStateError(w, log, err, "Could not update delivery order")
		return
	}

	if err := notify(ctx); err != nil {
		log.Error("platform refused delivery update", "error", err, "id", order.ID.String(), "status", status)
		aqm.RespondError(w, http.StatusBadGateway, "Delivery platform refused the update")
		return
	}

	if err := order.MoveTo(status); err != nil {
		h.respondStateError(w, log, err, "Could not update delivery order")
		return
	}
	if apply != nil {
		apply()
	}

	if err := h.deliveryRepo.Save(ctx, order); err != nil {
		log.Error("cannot save delivery order", "error", err, "id", order.ID.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update delivery order")
		return
	}

	log.Info("delivery order updated", "id", order.ID.String(), "platform", order.Platform, "status", status)
	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

func (h *Handler) loadDelivery(w http.ResponseWriter, ctx context.Context, log aqm.Logger, id uuid.UUID) (*DeliveryOrder, bool) {
	order, err := h.deliveryRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading delivery order", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load delivery order")
		return nil, false
	}
	if order == nil {
		aqm.RespondError(w, http.StatusNotFound, "Delivery order not found")
		return nil, false
	}
	return order, true
}

// profileOf falls back to an empty profile for platforms that left the enum.
func profileOf(order *DeliveryOrder) platform.Profile {
	p := platform.ByName(order.Platform)
	if p == nil {
		return platform.Profile{}
	}
	profile, err := p.Profile()
	if err != nil {
		return platform.Profile{}
	}
	return profile
}
