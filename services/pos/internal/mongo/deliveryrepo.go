package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/pos/services/pos/internal/pos"
)

type DeliveryRepo struct {
	collection *mongo.Collection
}

func NewDeliveryRepo(db *mongo.Database) *DeliveryRepo {
	return &DeliveryRepo{collection: db.Collection(deliveryCollection)}
}

func (r *DeliveryRepo) Get(ctx context.Context, id uuid.UUID) (*pos.DeliveryOrder, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *DeliveryRepo) GetByExternalID(ctx context.Context, platform, externalID string) (*pos.DeliveryOrder, error) {
	return r.findOne(ctx, bson.M{"platform": platform, "external_order_id": externalID})
}

func (r *DeliveryRepo) findOne(ctx context.Context, filter bson.M) (*pos.DeliveryOrder, error) {
	var order pos.DeliveryOrder
	err := r.collection.FindOne(ctx, filter).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get delivery order: %w", err)
	}
	return &order, nil
}

func (r *DeliveryRepo) ListLive(ctx context.Context) ([]*pos.DeliveryOrder, error) {
	filter := bson.M{"status": bson.M{"$nin": bson.A{pos.DeliveryDelivered, pos.DeliveryCancelled}}}
	return r.find(ctx, filter)
}

func (r *DeliveryRepo) List(ctx context.Context) ([]*pos.DeliveryOrder, error) {
	return r.find(ctx, bson.M{})
}

func (r *DeliveryRepo) find(ctx context.Context, filter bson.M) ([]*pos.DeliveryOrder, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list delivery orders: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*pos.DeliveryOrder
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode delivery orders: %w", err)
	}

	return result, nil
}

func (r *DeliveryRepo) Create(ctx context.Context, order *pos.DeliveryOrder) error {
	if order == nil {
		return fmt.Errorf("delivery order is nil")
	}

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("cannot create delivery order: %w", err)
	}

	return nil
}

func (r *DeliveryRepo) Save(ctx context.Context, order *pos.DeliveryOrder) error {
	if order == nil {
		return fmt.Errorf("delivery order is nil")
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": order.ID}, order)
	if err != nil {
		return fmt.Errorf("cannot update delivery order: %w", err)
	}

	if result.MatchedCount == 0 {
		return pos.ErrDeliveryNotFound
	}

	return nil
}
