package commands

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Demo data is recognised by the demo- prefix the demo seeds give product ids
// and external delivery ids.
const demoPrefix = "^demo-"

var demoSeedIDs = []string{
	"demo_open_order_v1",
	"demo_delivery_orders_v1",
}

// ClearDemo removes the demo order and delivery orders, frees the tables the
// demo order was sitting on and forgets the demo seeds.
func ClearDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	logger.Info("Starting demo data cleanup...")

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	if err := clearDemoOrders(ctx, db, logger); err != nil {
		return fmt.Errorf("clear demo orders: %w", err)
	}

	if err := clearDemoDelivery(ctx, db, logger); err != nil {
		return fmt.Errorf("clear demo delivery orders: %w", err)
	}

	trackerResult, err := db.Collection("_seeds").DeleteMany(ctx, bson.M{"_id": bson.M{"$in": demoSeedIDs}})
	if err != nil {
		return fmt.Errorf("delete demo seed tracker: %w", err)
	}
	logger.Info("Cleared demo seed tracker", "deleted", trackerResult.DeletedCount)

	return nil
}

func clearDemoOrders(ctx context.Context, db *mongo.Database, logger aqm.Logger) error {
	orders := db.Collection("orders")
	filter := bson.M{"items.product_id": bson.M{"$regex": demoPrefix}}

	cursor, err := orders.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return fmt.Errorf("find demo orders: %w", err)
	}

	var docs []struct {
		ID interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("decode demo orders: %w", err)
	}
	if len(docs) == 0 {
		logger.Info("No demo orders found")
		return nil
	}

	ids := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	tablesResult, err := db.Collection("tables").UpdateMany(ctx,
		bson.M{"current_order_id": bson.M{"$in": ids}},
		bson.M{
			"$set":   bson.M{"status": "empty"},
			"$unset": bson.M{"current_order_id": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("free demo tables: %w", err)
	}
	logger.Info("Freed demo tables", "count", tablesResult.ModifiedCount)

	ordersResult, err := orders.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("delete demo orders: %w", err)
	}
	logger.Info("Deleted demo orders", "count", ordersResult.DeletedCount)
	return nil
}

func clearDemoDelivery(ctx context.Context, db *mongo.Database, logger aqm.Logger) error {
	result, err := db.Collection("delivery_orders").DeleteMany(ctx, bson.M{"external_order_id": bson.M{"$regex": demoPrefix}})
	if err != nil {
		return err
	}
	logger.Info("Deleted demo delivery orders", "count", result.DeletedCount)
	return nil
}
