package handlers

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// relatedStore edits the relatedProducts list of one product.
type relatedStore interface {
	link(ctx context.Context, target, id primitive.ObjectID) error
	unlink(ctx context.Context, target, id primitive.ObjectID) error
}

type mongoRelatedStore struct {
	products *mongo.Collection
}

func newRelatedStore(db *mongo.Database) mongoRelatedStore {
	return mongoRelatedStore{products: db.Collection("products")}
}

func (s mongoRelatedStore) link(ctx context.Context, target, id primitive.ObjectID) error {
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": target},
		bson.M{"$addToSet": bson.M{"relatedProducts": id}},
	)
	return err
}

func (s mongoRelatedStore) unlink(ctx context.Context, target, id primitive.ObjectID) error {
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": target},
		bson.M{"$pull": bson.M{"relatedProducts": id}},
	)
	return err
}

// unlinkEverywhere pulls id from every product that lists it.
func (s mongoRelatedStore) unlinkEverywhere(ctx context.Context, id primitive.ObjectID) (int64, error) {
	result, err := s.products.UpdateMany(ctx,
		bson.M{"relatedProducts": id},
		bson.M{"$pull": bson.M{"relatedProducts": id}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// diffRelatedIDs returns ids only in after (added) and only in before
// (removed), each in input order.
func diffRelatedIDs(before, after []primitive.ObjectID) (added, removed []primitive.ObjectID) {
	inBefore := make(map[primitive.ObjectID]struct{}, len(before))
	for _, id := range before {
		inBefore[id] = struct{}{}
	}
	inAfter := make(map[primitive.ObjectID]struct{}, len(after))
	for _, id := range after {
		inAfter[id] = struct{}{}
	}

	for _, id := range after {
		if _, ok := inBefore[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if _, ok := inAfter[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// syncRelatedProducts mirrors a change of productID's related list onto the
// other side of each link.
func syncRelatedProducts(ctx context.Context, store relatedStore, productID primitive.ObjectID, before, after []primitive.ObjectID) error {
	added, removed := diffRelatedIDs(before, after)

	for _, target := range added {
		if err := store.link(ctx, target, productID); err != nil {
			return fmt.Errorf("link %s: %w", target.Hex(), err)
		}
	}
	for _, target := range removed {
		if err := store.unlink(ctx, target, productID); err != nil {
			return fmt.Errorf("unlink %s: %w", target.Hex(), err)
		}
	}

	if len(added)+len(removed) > 0 {
		logger.WithField("productId", productID.Hex()).
			WithField("linked", len(added)).
			WithField("unlinked", len(removed)).
			Info("related products synced")
	}
	return nil
}

// loadRelatedProducts resolves ids to their short form, keeping the order
// of ids and skipping ones that no longer exist.
func loadRelatedProducts(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) ([]models.RelatedProduct, error) {
	out := make([]models.RelatedProduct, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := db.Collection("products").Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1, "price": 1, "images": 1}),
	)
	if err != nil {
		return nil, err
	}

	var found []models.RelatedProduct
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.RelatedProduct, len(found))
	for _, p := range found {
		if p.Images == nil {
			p.Images = models.StringList{}
		}
		byID[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
