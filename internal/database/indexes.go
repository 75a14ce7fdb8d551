package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/logging"
)

type collectionIndex struct {
	collection string
	model      mongo.IndexModel
}

func storefrontIndexes() []collectionIndex {
	return []collectionIndex{
		{"users", mongo.IndexModel{
			Keys:    bson.D{{Key: "uid", Value: 1}},
			Options: options.Index().SetName("uid_unique").SetUnique(true),
		}},
		{"coupons", mongo.IndexModel{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetName("code_unique").SetUnique(true),
		}},
		{"ratings", mongo.IndexModel{
			Keys:    bson.D{{Key: "productId", Value: 1}},
			Options: options.Index().SetName("productId_index"),
		}},
		{"reservations", mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_createdAt_index"),
		}},
		{"products", mongo.IndexModel{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("category_index"),
		}},
		{"products", mongo.IndexModel{
			Keys:    bson.D{{Key: "relatedProducts", Value: 1}},
			Options: options.Index().SetName("relatedProducts_index"),
		}},
		{"categories", mongo.IndexModel{
			Keys:    bson.D{{Key: "parentId", Value: 1}},
			Options: options.Index().SetName("parentId_index"),
		}},
	}
}

// EnsureIndexes creates every storefront index. It keeps going after a
// failure and returns the last error seen.
func EnsureIndexes(db *mongo.Database) error {
	log := logging.Component("database")

	var lastErr error
	for _, idx := range storefrontIndexes() {
		name := ""
		if idx.model.Options != nil && idx.model.Options.Name != nil {
			name = *idx.model.Options.Name
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model)
		cancel()

		entry := log.WithField("collection", idx.collection).WithField("index", name)
		if err != nil {
			entry.WithError(err).Warn("index creation failed")
			lastErr = fmt.Errorf("%s.%s: %w", idx.collection, name, err)
			continue
		}
		entry.Debug("index ensured")
	}
	return lastErr
}
