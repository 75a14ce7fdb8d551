package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type productDetail struct {
	models.Product
	Related []models.RelatedProduct `json:"related"`
}

func productListFilter(c *gin.Context) bson.M {
	filter := bson.M{}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filter["category"] = category
	}
	if strings.EqualFold(c.Query("bestseller"), "true") {
		filter["bestseller"] = true
	}
	if strings.EqualFold(c.Query("inStock"), "true") {
		filter["inStock"] = true
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}
	return filter
}

func productIDs(products []models.Product) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

/*
GET /products
- pagination only when both page and limit are given
*/
func GetProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		pageStr := c.Query("page")
		limitStr := c.Query("limit")
		if pageStr != "" && limitStr != "" {
			page, limit, err := parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			findOptions.SetSkip((page - 1) * limit).SetLimit(limit)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection("products").Find(ctx, productListFilter(c), findOptions)
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

		summaries, err := loadRatingSummaries(ctx, db, productIDs(products))
		if err != nil {
			logger.WithError(err).Warn("rating summaries unavailable")
			summaries = nil
		}
		attachRatings(products, summaries)

		c.JSON(http.StatusOK, products)
	}
}

/*
GET /products/:id
- product with rating summary and resolved related products
*/
func GetProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := findProduct(ctx, db, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		summaries, err := loadRatingSummaries(ctx, db, []primitive.ObjectID{id})
		if err != nil {
			logger.WithError(err).Warn("rating summary unavailable")
		}
		summary := summaries[id]
		product.Rating = &summary

		related, err := loadRelatedProducts(ctx, db, product.RelatedProducts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, productDetail{Product: product, Related: related})
	}
}
