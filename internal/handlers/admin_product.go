package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/storage"
)

// imageStore is the part of the object store product writes use.
type imageStore interface {
	SaveAll(ctx context.Context, files []*multipart.FileHeader) ([]string, error)
	DeleteAll(urls []string)
}

// CatalogConfig carries what product writes need beyond the database.
type CatalogConfig struct {
	Store           imageStore
	UseTransactions bool
	MaxImages       int
}

// productInputError is a request problem reported as 400.
type productInputError struct {
	msg string
}

func (e productInputError) Error() string { return e.msg }

func badProductInput(format string, args ...interface{}) error {
	return productInputError{msg: fmt.Sprintf(format, args...)}
}

// applyProductInput copies the sent fields onto p, validating them, and
// returns the changed fields as a $set document.
func applyProductInput(ctx context.Context, db *mongo.Database, p *models.Product, input productInput, creating bool) (bson.M, error) {
	set := bson.M{}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, badProductInput("name cannot be empty")
		}
		p.Name = name
		set["name"] = name
	} else if creating {
		return nil, badProductInput("name required")
	}

	if input.Description != nil {
		p.Description = strings.TrimSpace(*input.Description)
		set["description"] = p.Description
	}

	if creating || input.Price != nil || input.MRP != nil {
		pricing, err := resolvePricingUpdate(p.Price, p.MRP, pricingUpdateInput{Price: input.Price, MRP: input.MRP})
		if err != nil {
			return nil, badProductInput("%s", err.Error())
		}
		p.Price, p.MRP = pricing.Price, pricing.MRP
		set["price"], set["mrp"] = p.Price, p.MRP
	}

	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category != "" {
			exists, err := categoryExists(ctx, db, category)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, badProductInput("category not found: %s", category)
			}
		}
		p.Category = category
		set["category"] = category
	}

	if input.Bestseller != nil {
		p.Bestseller = *input.Bestseller
		set["bestseller"] = p.Bestseller
	}
	if input.InStock != nil {
		p.InStock = *input.InStock
		set["inStock"] = p.InStock
	}

	if input.Options != nil {
		normalized, err := normalizeOptions(*input.Options)
		if err != nil {
			return nil, badProductInput("%s", err.Error())
		}
		p.Options = normalized
		set["options"] = normalized
	}

	if input.RelatedProducts != nil {
		ids, err := normalizeRelatedIDs(p.ID, *input.RelatedProducts)
		if err != nil {
			return nil, badProductInput("%s", err.Error())
		}
		if err := relatedIDsExist(ctx, db, ids); err != nil {
			return nil, err
		}
		p.RelatedProducts = ids
		set["relatedProducts"] = ids
	}

	return set, nil
}

// resolveImages combines kept URLs and new uploads. Uploads that succeed
// before a failure are removed again.
func resolveImages(ctx context.Context, cfg CatalogConfig, current []string, input productInput) ([]string, []string, error) {
	base := current
	if input.Images != nil {
		base = normalizeImageURLs(*input.Images)
	}
	if cfg.MaxImages > 0 && len(base)+len(input.Files) > cfg.MaxImages {
		return nil, nil, badProductInput("at most %d images per product", cfg.MaxImages)
	}
	if len(input.Files) == 0 {
		return base, nil, nil
	}
	if cfg.Store == nil {
		return nil, nil, errors.New("image store not configured")
	}

	uploaded, err := cfg.Store.SaveAll(ctx, input.Files)
	if err != nil {
		cfg.Store.DeleteAll(uploaded)
		var invalid storage.InvalidImageError
		if errors.As(err, &invalid) {
			return nil, nil, badProductInput("%s", invalid.Error())
		}
		return nil, nil, err
	}

	images := make([]string, 0, len(base)+len(uploaded))
	images = append(images, base...)
	images = append(images, uploaded...)
	return images, uploaded, nil
}

func respondProductError(c *gin.Context, route string, err error) {
	var inputErr productInputError
	if errors.As(err, &inputErr) {
		respondWithError(c, http.StatusBadRequest, route, inputErr.msg)
		return
	}
	logger.WithError(err).WithField("route", route).Error("product write failed")
	respondWithError(c, http.StatusInternalServerError, route, "db error")
}

/*
GET /admin/api/products
- paginated, newest first
*/
func AdminListProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["category"] = category
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			pattern := regexp.QuoteMeta(search)
			filter["$or"] = []bson.M{
				{"name": bson.M{"$regex": pattern, "$options": "i"}},
				{"description": bson.M{"$regex": pattern, "$options": "i"}},
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().
			SetSkip((page - 1) * limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		cursor, err := db.Collection("products").Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       products,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

/*
POST /admin/api/products
- JSON or multipart/form-data
*/
func CreateProduct(db *mongo.Database, cfg CatalogConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"

		input, err := parseProductRequest(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		now := time.Now()
		product := models.Product{
			ID:        primitive.NewObjectID(),
			InStock:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if _, err := applyProductInput(ctx, db, &product, input, true); err != nil {
			respondProductError(c, route, err)
			return
		}

		images, uploaded, err := resolveImages(ctx, cfg, nil, input)
		if err != nil {
			respondProductError(c, route, err)
			return
		}
		product.Images = images
		decorateProduct(&product)

		err = database.WithTransaction(ctx, db, cfg.UseTransactions, func(ctx context.Context) error {
			if _, err := db.Collection("products").InsertOne(ctx, product); err != nil {
				return err
			}
			return syncRelatedProducts(ctx, newRelatedStore(db), product.ID, nil, product.RelatedProducts)
		})
		if err != nil {
			if cfg.Store != nil {
				cfg.Store.DeleteAll(uploaded)
			}
			respondProductError(c, route, err)
			return
		}

		logger.WithField("productId", product.ID.Hex()).
			WithField("images", len(product.Images)).
			WithField("related", len(product.RelatedProducts)).
			Info("product created")
		c.JSON(http.StatusCreated, product)
	}
}

/*
PUT /admin/api/products/:id
- only sent fields change
*/
func UpdateProduct(db *mongo.Database, cfg CatalogConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		input, err := parseProductRequest(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		existing, err := findProduct(ctx, db, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		product := existing
		beforeRelated := append([]primitive.ObjectID(nil), existing.RelatedProducts...)

		set, err := applyProductInput(ctx, db, &product, input, false)
		if err != nil {
			respondProductError(c, route, err)
			return
		}

		var uploaded []string
		if input.Images != nil || len(input.Files) > 0 {
			images, newUploads, err := resolveImages(ctx, cfg, existing.Images, input)
			if err != nil {
				respondProductError(c, route, err)
				return
			}
			product.Images = images
			uploaded = newUploads
			set["images"] = models.StringList(images)
		}

		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		product.UpdatedAt = time.Now()
		set["updatedAt"] = product.UpdatedAt

		err = database.WithTransaction(ctx, db, cfg.UseTransactions, func(ctx context.Context) error {
			if _, err := db.Collection("products").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
				return err
			}
			if input.RelatedProducts == nil {
				return nil
			}
			return syncRelatedProducts(ctx, newRelatedStore(db), id, beforeRelated, product.RelatedProducts)
		})
		if err != nil {
			if cfg.Store != nil {
				cfg.Store.DeleteAll(uploaded)
			}
			respondProductError(c, route, err)
			return
		}

		if cfg.Store != nil {
			cfg.Store.DeleteAll(removedImages(existing.Images, product.Images))
		}

		decorateProduct(&product)
		c.JSON(http.StatusOK, product)
	}
}

/*
DELETE /admin/api/products/:id
- hard delete; the product is pulled from every related list and its ratings and images are removed
*/
func DeleteProduct(db *mongo.Database, cfg CatalogConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		existing, err := findProduct(ctx, db, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var unlinked int64
		err = database.WithTransaction(ctx, db, cfg.UseTransactions, func(ctx context.Context) error {
			if _, err := db.Collection("products").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
				return err
			}
			n, err := newRelatedStore(db).unlinkEverywhere(ctx, id)
			if err != nil {
				return err
			}
			unlinked = n
			_, err = db.Collection("ratings").DeleteMany(ctx, bson.M{"productId": id})
			return err
		})
		if err != nil {
			respondProductError(c, route, err)
			return
		}

		if cfg.Store != nil {
			cfg.Store.DeleteAll(existing.Images)
		}

		logger.WithField("productId", id.Hex()).WithField("unlinked", unlinked).Info("product deleted")
		c.Status(http.StatusNoContent)
	}
}
