package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// decorateProduct fills the derived read-model fields.
func decorateProduct(p *models.Product) {
	p.DiscountPercent = discountPercent(p.Price, p.MRP)
	if p.Images == nil {
		p.Images = models.StringList{}
	}
	if p.Options == nil {
		p.Options = []models.ProductOption{}
	}
	if p.RelatedProducts == nil {
		p.RelatedProducts = []primitive.ObjectID{}
	}
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var p models.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		decorateProduct(&p)
		products = append(products, p)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func findProduct(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (models.Product, error) {
	var p models.Product
	if err := db.Collection("products").FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Product{}, err
	}
	decorateProduct(&p)
	return p, nil
}

// normalizeOptions trims names and values and drops duplicate values. Every
// option needs a name and at least one value.
func normalizeOptions(opts []models.ProductOption) ([]models.ProductOption, error) {
	out := make([]models.ProductOption, 0, len(opts))
	seenNames := map[string]struct{}{}

	for _, option := range opts {
		name := strings.TrimSpace(option.Name)
		if name == "" {
			return nil, errors.New("option name required")
		}
		if _, ok := seenNames[strings.ToLower(name)]; ok {
			return nil, fmt.Errorf("duplicate option: %s", name)
		}
		seenNames[strings.ToLower(name)] = struct{}{}

		values := make([]string, 0, len(option.Values))
		seenValues := map[string]struct{}{}
		for _, v := range option.Values {
			value := strings.TrimSpace(v)
			if value == "" {
				continue
			}
			if _, ok := seenValues[value]; ok {
				continue
			}
			seenValues[value] = struct{}{}
			values = append(values, value)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("option %s needs at least one value", name)
		}

		out = append(out, models.ProductOption{Name: name, Values: values})
	}
	return out, nil
}

// normalizeRelatedIDs parses related product ids, dropping blanks,
// duplicates and self.
func normalizeRelatedIDs(self primitive.ObjectID, raw []string) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]struct{}{}
	out := make([]primitive.ObjectID, 0, len(raw))

	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(value)
		if err != nil {
			return nil, fmt.Errorf("invalid related product id: %s", value)
		}
		if id == self {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// relatedIDsExist reports the first id that does not name a product.
func relatedIDsExist(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return err
	}
	var found []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &found); err != nil {
		return err
	}

	existing := make(map[primitive.ObjectID]struct{}, len(found))
	for _, f := range found {
		existing[f.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			return badProductInput("related product not found: %s", id.Hex())
		}
	}
	return nil
}

func normalizeImageURLs(raw []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		url := strings.TrimSpace(v)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}

// removedImages lists URLs present in before but not in after.
func removedImages(before, after []string) []string {
	kept := make(map[string]struct{}, len(after))
	for _, url := range after {
		kept[url] = struct{}{}
	}
	out := make([]string, 0)
	for _, url := range before {
		if _, ok := kept[url]; !ok {
			out = append(out, url)
		}
	}
	return out
}

func categoryExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
