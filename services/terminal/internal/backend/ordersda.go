package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/aquamarinepk/aqm"
)

type transferRequest struct {
	TargetTableID string `json:"target_table_id"`
}

// OrderDataAccess persists orders and payments.
type OrderDataAccess struct {
	client Requester
}

func NewOrderDataAccess(client Requester) *OrderDataAccess {
	return &OrderDataAccess{client: client}
}

// ListOrders returns orders in the given status; an empty status lists all
// open ones.
func (da *OrderDataAccess) ListOrders(ctx context.Context, status string) ([]orders.Order, error) {
	if da == nil || da.client == nil {
		return nil, ErrNotConfigured
	}

	path := "/orders"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	resp, err := da.client.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var list []orders.Order
	if err := decodeSuccessResponse(resp, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (da *OrderDataAccess) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	if da == nil || da.client == nil {
		return orders.Order{}, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return orders.Order{}, err
	}
	return decodeOrder(resp)
}

func (da *OrderDataAccess) CreateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	if da == nil || da.client == nil {
		return orders.Order{}, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodPost, "/orders", o)
	if err != nil {
		return orders.Order{}, err
	}
	return decodeOrder(resp)
}

func (da *OrderDataAccess) UpdateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	if da == nil || da.client == nil {
		return orders.Order{}, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodPut, "/orders/"+url.PathEscape(o.ID), o)
	if err != nil {
		return orders.Order{}, err
	}
	return decodeOrder(resp)
}

func (da *OrderDataAccess) Pay(ctx context.Context, orderID string, req orders.PaymentRequest) (orders.Order, error) {
	if da == nil || da.client == nil {
		return orders.Order{}, ErrNotConfigured
	}

	path := fmt.Sprintf("/orders/%s/payments", url.PathEscape(orderID))
	resp, err := da.client.Request(ctx, http.MethodPost, path, req)
	if err != nil {
		return orders.Order{}, err
	}
	return decodeOrder(resp)
}

func (da *OrderDataAccess) TransferTable(ctx context.Context, fromTableID, toTableID string) error {
	if da == nil || da.client == nil {
		return ErrNotConfigured
	}

	path := fmt.Sprintf("/tables/%s/transfer", url.PathEscape(fromTableID))
	_, err := da.client.Request(ctx, http.MethodPost, path, transferRequest{TargetTableID: toTableID})
	return err
}

func decodeOrder(resp *aqm.SuccessResponse) (orders.Order, error) {
	var o orders.Order
	if resp == nil || resp.Data == nil {
		return o, nil
	}
	if err := decodeSuccessResponse(resp, &o); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}
