package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/appetiteclub/pos/services/terminal/internal/delivery"
	"github.com/aquamarinepk/aqm"
)

type acceptRequest struct {
	PrepTimeMinutes int `json:"prep_time_minutes"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type fetchResult struct {
	Upserted int `json:"upserted"`
}

// DeliveryDataAccess reads and drives platform orders held by the backend.
type DeliveryDataAccess struct {
	client Requester
}

func NewDeliveryDataAccess(client Requester) *DeliveryDataAccess {
	return &DeliveryDataAccess{client: client}
}

func (da *DeliveryDataAccess) LiveOrders(ctx context.Context) ([]delivery.Order, error) {
	if da == nil || da.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodGet, "/delivery/orders?live=true", nil)
	if err != nil {
		return nil, err
	}

	var list []delivery.Order
	if err := decodeSuccessResponse(resp, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (da *DeliveryDataAccess) FetchFeeds(ctx context.Context) (int, error) {
	if da == nil || da.client == nil {
		return 0, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodPost, "/delivery/fetch", nil)
	if err != nil {
		return 0, err
	}

	var res fetchResult
	if err := decodeSuccessResponse(resp, &res); err != nil {
		return 0, err
	}
	return res.Upserted, nil
}

func (da *DeliveryDataAccess) Accept(ctx context.Context, id string, prepMinutes int) (delivery.Order, error) {
	return da.post(ctx, id, "accept", acceptRequest{PrepTimeMinutes: prepMinutes})
}

func (da *DeliveryDataAccess) Reject(ctx context.Context, id, reason string) (delivery.Order, error) {
	return da.post(ctx, id, "reject", rejectRequest{Reason: reason})
}

func (da *DeliveryDataAccess) UpdateStatus(ctx context.Context, id, status string) (delivery.Order, error) {
	if da == nil || da.client == nil {
		return delivery.Order{}, ErrNotConfigured
	}

	path := fmt.Sprintf("/delivery/orders/%s/status", url.PathEscape(id))
	resp, err := da.client.Request(ctx, http.MethodPatch, path, statusRequest{Status: status})
	if err != nil {
		return delivery.Order{}, err
	}
	return decodeDeliveryOrder(resp)
}

func (da *DeliveryDataAccess) post(ctx context.Context, id, action string, body interface{}) (delivery.Order, error) {
	if da == nil || da.client == nil {
		return delivery.Order{}, ErrNotConfigured
	}

	path := fmt.Sprintf("/delivery/orders/%s/%s", url.PathEscape(id), action)
	resp, err := da.client.Request(ctx, http.MethodPost, path, body)
	if err != nil {
		return delivery.Order{}, err
	}
	return decodeDeliveryOrder(resp)
}

func decodeDeliveryOrder(resp *aqm.SuccessResponse) (delivery.Order, error) {
	var o delivery.Order
	if resp == nil || resp.Data == nil {
		return o, nil
	}
	if err := decodeSuccessResponse(resp, &o); err != nil {
		return delivery.Order{}, err
	}
	return o, nil
}
