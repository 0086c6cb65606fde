package pos

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/paymentmethod"
	"github.com/appetiteclub/pos/pkg/enums/platform"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"github.com/shopspring/decimal"
)

// ApplyDemoSeeds lays out the floor and then puts it in a lived-in state: one
// table with an open order and a couple of delivery orders waiting.
func ApplyDemoSeeds(ctx context.Context, tracker seed.Tracker, repos Repos, seedFS fs.FS, logger aqm.Logger) error {
	if err := ApplySeeds(ctx, tracker, repos, seedFS, logger); err != nil {
		return fmt.Errorf("apply standard pos seeds: %w", err)
	}

	demo := []seed.Seed{
		{
			ID:          "demo_open_order_v1",
			Description: "Open a demo order on the first table",
			Run: func(ctx context.Context) error {
				return seedDemoOrder(ctx, repos, logger)
			},
		},
		{
			ID:          "demo_delivery_orders_v1",
			Description: "Create demo delivery orders waiting for a decision",
			Run: func(ctx context.Context) error {
				return seedDemoDelivery(ctx, repos.DeliveryRepo)
			},
		},
	}

	logger.Info("Applying pos demo seeds")
	return seed.Apply(ctx, tracker, demo, posSeedApplication)
}

func seedDemoOrder(ctx context.Context, repos Repos, logger aqm.Logger) error {
	if repos.OrderRepo == nil || repos.Counter == nil {
		return errors.New("order repository and counter are required")
	}

	tables, err := repos.TableRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(tables) == 0 {
		return errors.New("no tables to open a demo order on")
	}
	table := tables[0]
	if table.HasOrder() {
		logger.Info("Demo table already holds an order", "table", table.Name)
		return nil
	}

	order := NewOrder()
	order.Source = SourceTable
	order.TableID = &table.ID
	order.Items = []OrderItem{
		{ProductID: "demo-tea", ProductName: "Çay", Price: decimal.NewFromInt(15), Quantity: 2, Portion: "full"},
		{ProductID: "demo-kebab", ProductName: "Adana Kebap", Price: decimal.NewFromInt(240), Quantity: 1, Portion: "full"},
	}
	if err := table.Occupy(order.ID); err != nil {
		return err
	}

	number, err := repos.Counter.Next(ctx, orderNumberSequence)
	if err != nil {
		return err
	}
	order.OrderNumber = number
	order.BeforeCreate()

	if err := repos.OrderRepo.Create(ctx, order); err != nil {
		return fmt.Errorf("create demo order: %w", err)
	}
	return repos.TableRepo.Save(ctx, table)
}

func seedDemoDelivery(ctx context.Context, repo DeliveryRepo) error {
	if repo == nil {
		return errors.New("delivery repository is required")
	}

	now := time.Now().UTC()
	orders := []*DeliveryOrder{
		{
			Platform:        platform.Platforms.Yemeksepeti.Code(),
			ExternalOrderID: "demo-ys-1001",
			Customer:        Customer{Name: "Ayşe Yılmaz", Phone: "+90 555 000 0001", Address: "Moda Cd. 12, Kadıköy"},
			Items: []DeliveryItem{
				{Name: "Lahmacun", Quantity: 3, UnitPrice: decimal.NewFromInt(90)},
				{Name: "Ayran", Quantity: 3, UnitPrice: decimal.NewFromInt(25)},
			},
			Total:         decimal.NewFromInt(345),
			PaymentMethod: paymentmethod.Methods.Online.Code(),
			CreatedAt:     now,
		},
		{
			Platform:        platform.Platforms.Getir.Code(),
			ExternalOrderID: "demo-gy-2001",
			Customer:        Customer{Name: "Mehmet Kaya", Phone: "+90 555 000 0002", Address: "Bağdat Cd. 210, Maltepe"},
			Items: []DeliveryItem{
				{Name: "İskender", Quantity: 1, UnitPrice: decimal.NewFromInt(320)},
			},
			Total:         decimal.NewFromInt(320),
			PaymentMethod: paymentmethod.Methods.Cash.Code(),
			CreatedAt:     now,
		},
	}

	_, err := SyncDeliveryOrders(ctx, repo, orders)
	return err
}

// DemoSeedingFunc is SeedingFunc with the demo state on top.
func DemoSeedingFunc(seedCtx context.Context, tracker seed.Tracker, repos Repos, seedFS fs.FS, logger aqm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting pos demo seeding in background")
		go func() {
			if err := ApplyDemoSeeds(seedCtx, tracker, repos, seedFS, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Pos demo seeds failed: %v", err)
			} else if err == nil {
				logger.Info("Pos demo seeding completed successfully")
			}
		}()
		return nil
	}
}
