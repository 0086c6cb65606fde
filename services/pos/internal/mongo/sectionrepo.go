package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/pos/services/pos/internal/pos"
)

const (
	sectionsCollection = "sections"
	tablesCollection   = "tables"
	ordersCollection   = "orders"
	deliveryCollection = "delivery_orders"
	countersCollection = "counters"
)

type SectionRepo struct {
	collection *mongo.Collection
}

func NewSectionRepo(db *mongo.Database) *SectionRepo {
	return &SectionRepo{collection: db.Collection(sectionsCollection)}
}

func (r *SectionRepo) Create(ctx context.Context, section *pos.Section) error {
	if section == nil {
		return fmt.Errorf("section is nil")
	}

	if _, err := r.collection.InsertOne(ctx, section); err != nil {
		return fmt.Errorf("cannot create section: %w", err)
	}

	return nil
}

func (r *SectionRepo) List(ctx context.Context) ([]*pos.Section, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list sections: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*pos.Section
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode sections: %w", err)
	}

	return result, nil
}
