package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/platform"
	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var ErrPlatformNotConfigured = errors.New("delivery platform is not configured")

// FeedGateway is the platform side of delivery orders: pulling new ones and
// reporting decisions back.
type FeedGateway interface {
	Fetch(ctx context.Context) ([]*DeliveryOrder, error)
	Accept(ctx context.Context, order *DeliveryOrder, prepMinutes int) error
	Reject(ctx context.Context, order *DeliveryOrder, reason string) error
	ReportStatus(ctx context.Context, order *DeliveryOrder, status string) error
}

// Requester is satisfied by *aqm.ServiceClient.
type Requester interface {
	Request(ctx context.Context, method, path string, body interface{}) (*aqm.SuccessResponse, error)
}

// feedOrder is the shape platform integrations answer with.
type feedOrder struct {
	ID            string          `json:"id"`
	Customer      Customer        `json:"customer"`
	Items         []DeliveryItem  `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
}

type platformFeed struct {
	platform platform.Platform
	profile  platform.Profile
	client   Requester
}

// Feeds talks to one integration endpoint per configured platform.
type Feeds struct {
	feeds  map[string]platformFeed
	logger aqm.Logger
}

func NewFeeds(clients map[platform.Platform]Requester, logger aqm.Logger) (*Feeds, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	feeds := make(map[string]platformFeed, len(clients))
	for p, client := range clients {
		if client == nil {
			continue
		}
		profile, err := p.Profile()
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", p.Code(), err)
		}
		feeds[p.Code()] = platformFeed{platform: p, profile: profile, client: client}
	}

	return &Feeds{feeds: feeds, logger: logger.With("component", "feeds")}, nil
}

// Fetch pulls every platform concurrently. A failing platform does not hide
// the orders of the others; its error is joined into the result.
func (f *Feeds) Fetch(ctx context.Context) ([]*DeliveryOrder, error) {
	var (
		mu   sync.Mutex
		out  []*DeliveryOrder
		errs []error
		g    errgroup.Group
	)

	for _, feed := range f.feeds {
		g.Go(func() error {
			orders, err := f.fetchOne(ctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.logger.Error("cannot fetch delivery feed", "platform", feed.platform.Code(), "error", err)
				errs = append(errs, err)
				return nil
			}
			out = append(out, orders...)
			return nil
		})
	}

	_ = g.Wait()
	return out, errors.Join(errs...)
}

func (f *Feeds) fetchOne(ctx context.Context, feed platformFeed) ([]*DeliveryOrder, error) {
	resp, err := feed.client.Request(ctx, http.MethodGet, feed.profile.OrdersPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", feed.platform.Code(), err)
	}

	var raw []feedOrder
	if resp != nil && resp.Data != nil {
		if err := decodeData(resp.Data, &raw); err != nil {
			return nil, fmt.Errorf("%s: cannot decode orders: %w", feed.platform.Code(), err)
		}
	}

	orders := make([]*DeliveryOrder, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.ID) == "" {
			f.logger.Info("skipping feed order without id", "platform", feed.platform.Code())
			continue
		}
		orders = append(orders, r.toDeliveryOrder(feed.platform))
	}
	return orders, nil
}

func (r feedOrder) toDeliveryOrder(p platform.Platform) *DeliveryOrder {
	return &DeliveryOrder{
		Platform:          p.Code(),
		ExternalOrderID:   r.ID,
		Customer:          r.Customer,
		Items:             r.Items,
		Total:             r.Total,
		Status:            DeliveryNew,
		PaymentMethod:     r.PaymentMethod,
		PlatformCancelled: strings.EqualFold(r.Status, DeliveryCancelled),
		CreatedAt:         r.CreatedAt,
	}
}

func (f *Feeds) Accept(ctx context.Context, order *DeliveryOrder, prepMinutes int) error {
	feed, err := f.feedFor(order)
	if err != nil {
		return err
	}
	body := map[string]interface{}{"prep_time_minutes": prepMinutes}
	return f.post(ctx, feed, feed.profile.AcceptPath, order, body)
}

func (f *Feeds) Reject(ctx context.Context, order *DeliveryOrder, reason string) error {
	feed, err := f.feedFor(order)
	if err != nil {
		return err
	}
	body := map[string]interface{}{"reason": reason}
	return f.post(ctx, feed, feed.profile.RejectPath, order, body)
}

// ReportStatus forwards the ready transition to platforms that track it.
// Other statuses stay local.
func (f *Feeds) ReportStatus(ctx context.Context, order *DeliveryOrder, status string) error {
	feed, err := f.feedFor(order)
	if err != nil {
		return err
	}
	if status != DeliveryReady || !feed.profile.ReportsReady {
		return nil
	}
	body := map[string]interface{}{"status": status}
	return f.post(ctx, feed, feed.profile.StatusPath, order, body)
}

func (f *Feeds) feedFor(order *DeliveryOrder) (platformFeed, error) {
	feed, ok := f.feeds[order.Platform]
	if !ok {
		return platformFeed{}, fmt.Errorf("%w: %s", ErrPlatformNotConfigured, order.Platform)
	}
	return feed, nil
}

func (f *Feeds) post(ctx context.Context, feed platformFeed, pathFmt string, order *DeliveryOrder, body interface{}) error {
	path := fmt.Sprintf(pathFmt, url.PathEscape(order.ExternalOrderID))
	if _, err := feed.client.Request(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("%s %s: %w", feed.platform.Code(), path, err)
	}
	return nil
}

// SyncDeliveryOrders upserts fetched orders by platform and external id and
// returns how many documents were written. Orders already closed locally are
// not touched.
func SyncDeliveryOrders(ctx context.Context, repo DeliveryRepo, fetched []*DeliveryOrder) (int, error) {
	written := 0
	for _, o := range fetched {
		existing, err := repo.GetByExternalID(ctx, o.Platform, o.ExternalOrderID)
		if err != nil {
			return written, err
		}

		if existing == nil {
			o.BeforeCreate()
			if err := repo.Create(ctx, o); err != nil {
				return written, err
			}
			written++
			continue
		}

		if !existing.IsLive() {
			continue
		}
		existing.Refresh(o)
		if err := repo.Save(ctx, existing); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func decodeData(data interface{}, dest interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
