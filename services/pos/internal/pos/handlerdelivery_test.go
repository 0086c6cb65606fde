package pos

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (f *fixture) addDelivery(t *testing.T, platform, externalID, status string) *DeliveryOrder {
	t.Helper()
	order := &DeliveryOrder{
		Platform:        platform,
		ExternalOrderID: externalID,
		Customer:        Customer{Name: "Ayşe", Phone: "5550000000", Address: "Moda Cd. 12"},
		Items:           []DeliveryItem{{Name: "Lahmacun", Quantity: 2, UnitPrice: decimal.NewFromInt(90)}},
		Total:           decimal.NewFromInt(180),
		Status:          status,
		PaymentMethod:   "online",
	}
	order.BeforeCreate()
	if err := f.delivery.Create(context.Background(), order); err != nil {
		t.Fatalf("create delivery order: %v", err)
	}
	return order
}

func (f *fixture) deliveryOrder(t *testing.T, id uuid.UUID) *DeliveryOrder {
	t.Helper()
	order, _ := f.delivery.Get(context.Background(), id)
	if order == nil {
		t.Fatalf("delivery order %s not found", id)
	}
	return order
}

func TestFetchDelivery(t *testing.T) {
	f := newFixture(t)
	closed := f.addDelivery(t, "getir", "G-1", DeliveryDelivered)
	f.feeds.Orders = []*DeliveryOrder{
		{Platform: "yemeksepeti", ExternalOrderID: "Y-1", Status: DeliveryNew, Total: decimal.NewFromInt(300)},
		{Platform: "yemeksepeti", ExternalOrderID: "Y-2", Status: DeliveryNew, Total: decimal.NewFromInt(150)},
		{Platform: "getir", ExternalOrderID: "G-1", Status: DeliveryNew, Total: decimal.NewFromInt(999)},
	}

	rec := f.do(t, http.MethodPost, "/delivery/fetch", nil)
	expectStatus(t, rec, http.StatusOK)

	var result fetchResult
	decodeResponseData(t, rec, &result)
	if result.Upserted != 2 {
		t.Errorf("Upserted = %d, want 2", result.Upserted)
	}

	if got := f.deliveryOrder(t, closed.ID); got.Status != DeliveryDelivered || !got.Total.Equal(decimal.NewFromInt(180)) {
		t.Errorf("closed order was touched: %s %s", got.Status, got.Total)
	}

	// a second fetch refreshes instead of duplicating
	rec = f.do(t, http.MethodPost, "/delivery/fetch", nil)
	expectStatus(t, rec, http.StatusOK)

	all, _ := f.delivery.List(context.Background())
	if len(all) != 3 {
		t.Errorf("stored %d delivery orders, want 3", len(all))
	}

	rec = f.do(t, http.MethodGet, "/delivery/orders?live=true", nil)
	expectStatus(t, rec, http.StatusOK)

	var live []DeliveryOrder
	decodeResponseData(t, rec, &live)
	if len(live) != 2 {
		t.Errorf("live orders = %d, want 2", len(live))
	}
}

func TestFetchDeliveryFailures(t *testing.T) {
	tests := []struct {
		name         string
		orders       []*DeliveryOrder
		fetchErr     error
		wantStatus   int
		wantUpserted int
	}{
		{
			name:       "allPlatformsDown",
			fetchErr:   errors.New("connection refused"),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:         "onePlatformDown",
			orders:       []*DeliveryOrder{{Platform: "getir", ExternalOrderID: "G-9", Status: DeliveryNew}},
			fetchErr:     errors.New("yemeksepeti: timeout"),
			wantStatus:   http.StatusOK,
			wantUpserted: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.feeds.Orders = tt.orders
			f.feeds.FetchErr = tt.fetchErr

			rec := f.do(t, http.MethodPost, "/delivery/fetch", nil)
			expectStatus(t, rec, tt.wantStatus)

			if tt.wantStatus != http.StatusOK {
				return
			}
			var result fetchResult
			decodeResponseData(t, rec, &result)
			if result.Upserted != tt.wantUpserted {
				t.Errorf("Upserted = %d, want %d", result.Upserted, tt.wantUpserted)
			}
		})
	}
}

func TestAcceptDelivery(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		body       interface{}
		remoteErr  error
		wantStatus int
		wantPrep   int
	}{
		{name: "defaultPrepTime", status: DeliveryNew, wantStatus: http.StatusOK, wantPrep: 25},
		{name: "explicitPrepTime", status: DeliveryNew, body: AcceptRequest{PrepTimeMinutes: 40}, wantStatus: http.StatusOK, wantPrep: 40},
		{name: "negativePrepTime", status: DeliveryNew, body: AcceptRequest{PrepTimeMinutes: -5}, wantStatus: http.StatusBadRequest},
		{name: "alreadyAccepted", status: DeliveryAccepted, wantStatus: http.StatusConflict},
		{name: "platformRefuses", status: DeliveryNew, remoteErr: errors.New("order expired"), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.addDelivery(t, "yemeksepeti", "Y-1", tt.status)
			f.feeds.RemoteErr = tt.remoteErr

			rec := f.do(t, http.MethodPost, "/delivery/orders/"+order.ID.String()+"/accept", tt.body)
			expectStatus(t, rec, tt.wantStatus)

			got := f.deliveryOrder(t, order.ID)
			if tt.wantStatus != http.StatusOK {
				if got.Status != tt.status {
					t.Errorf("refused accept changed status to %s", got.Status)
				}
				return
			}

			if got.Status != DeliveryAccepted {
				t.Errorf("Status = %s, want accepted", got.Status)
			}
			if got.PrepTimeMinutes != tt.wantPrep {
				t.Errorf("PrepTimeMinutes = %d, want %d", got.PrepTimeMinutes, tt.wantPrep)
			}
			if len(f.feeds.Calls) != 1 || f.feeds.Calls[0] != "accept:Y-1" {
				t.Errorf("platform calls = %v, want [accept:Y-1]", f.feeds.Calls)
			}
		})
	}
}

func TestRejectDelivery(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantReason string
	}{
		{name: "defaultReason", wantReason: "closed"},
		{name: "explicitReason", body: RejectRequest{Reason: "out_of_stock"}, wantReason: "out_of_stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.addDelivery(t, "getir", "G-1", DeliveryNew)

			rec := f.do(t, http.MethodPost, "/delivery/orders/"+order.ID.String()+"/reject", tt.body)
			expectStatus(t, rec, http.StatusOK)

			got := f.deliveryOrder(t, order.ID)
			if got.Status != DeliveryCancelled || got.RejectReason != tt.wantReason {
				t.Errorf("got %s/%q, want cancelled/%q", got.Status, got.RejectReason, tt.wantReason)
			}
			if got.IsLive() {
				t.Error("rejected order should not be live")
			}
		})
	}
}

func TestUpdateDeliveryStatus(t *testing.T) {
	tests := []struct {
		name       string
		from       string
		to         string
		wantStatus int
		wantCall   string
	}{
		{name: "acceptedToReady", from: DeliveryAccepted, to: DeliveryReady, wantStatus: http.StatusOK, wantCall: "status:Y-1:ready"},
		{name: "readyToOnTheWay", from: DeliveryReady, to: DeliveryOnTheWay, wantStatus: http.StatusOK, wantCall: "status:Y-1:on_the_way"},
		{name: "skipReady", from: DeliveryAccepted, to: DeliveryDelivered, wantStatus: http.StatusConflict},
		{name: "newToPreparing", from: DeliveryNew, to: DeliveryPreparing, wantStatus: http.StatusConflict},
		{name: "acceptIsNotAStatusUpdate", from: DeliveryNew, to: DeliveryAccepted, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.addDelivery(t, "yemeksepeti", "Y-1", tt.from)

			rec := f.do(t, http.MethodPatch, "/delivery/orders/"+order.ID.String()+"/status", DeliveryStatusRequest{Status: tt.to})
			expectStatus(t, rec, tt.wantStatus)

			got := f.deliveryOrder(t, order.ID)
			if tt.wantStatus != http.StatusOK {
				if got.Status != tt.from {
					t.Errorf("refused update changed status to %s", got.Status)
				}
				if len(f.feeds.Calls) != 0 {
					t.Errorf("refused update reached the platform: %v", f.feeds.Calls)
				}
				return
			}

			if got.Status != tt.to {
				t.Errorf("Status = %s, want %s", got.Status, tt.to)
			}
			if len(f.feeds.Calls) != 1 || f.feeds.Calls[0] != tt.wantCall {
				t.Errorf("platform calls = %v, want [%s]", f.feeds.Calls, tt.wantCall)
			}
		})
	}
}

func TestDeliveryOrderNotFound(t *testing.T) {
	f := newFixture(t)

	expectStatus(t, f.do(t, http.MethodPost, "/delivery/orders/"+uuid.NewString()+"/accept", nil), http.StatusNotFound)
}
