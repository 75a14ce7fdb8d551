package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/middleware"
	"storefront/internal/models"
)

type ratingRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=1000"`
}

// summarizeRatings returns the mean of the values; no ratings gives 0/0.
func summarizeRatings(ratings []models.Rating) models.RatingSummary {
	if len(ratings) == 0 {
		return models.RatingSummary{}
	}
	total := 0
	for _, r := range ratings {
		total += r.Rating
	}
	return models.RatingSummary{
		Average: float64(total) / float64(len(ratings)),
		Count:   len(ratings),
	}
}

func summarizeByProduct(ratings []models.Rating) map[primitive.ObjectID]models.RatingSummary {
	grouped := make(map[primitive.ObjectID][]models.Rating)
	for _, r := range ratings {
		grouped[r.ProductID] = append(grouped[r.ProductID], r)
	}
	out := make(map[primitive.ObjectID]models.RatingSummary, len(grouped))
	for id, list := range grouped {
		out[id] = summarizeRatings(list)
	}
	return out
}

func loadRatingSummaries(ctx context.Context, db *mongo.Database, productIDs []primitive.ObjectID) (map[primitive.ObjectID]models.RatingSummary, error) {
	if len(productIDs) == 0 {
		return map[primitive.ObjectID]models.RatingSummary{}, nil
	}
	cursor, err := db.Collection("ratings").Find(ctx,
		bson.M{"productId": bson.M{"$in": productIDs}},
		options.Find().SetProjection(bson.M{"productId": 1, "rating": 1}),
	)
	if err != nil {
		return nil, err
	}
	var ratings []models.Rating
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, err
	}
	return summarizeByProduct(ratings), nil
}

// attachRatings sets Rating on every product, zero when unrated.
func attachRatings(products []models.Product, summaries map[primitive.ObjectID]models.RatingSummary) {
	for i := range products {
		summary := summaries[products[i].ID]
		products[i].Rating = &summary
	}
}

/*
GET /products/:id/ratings
*/
func GetProductRatings(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id/ratings"
		defer handlePanic(c, route)

		productID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection("ratings").Find(ctx,
			bson.M{"productId": productID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		ratings := make([]models.Rating, 0)
		if err := cursor.All(ctx, &ratings); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":    ratings,
			"summary": summarizeRatings(ratings),
		})
	}
}

/*
POST /products/:id/ratings
- one rating per user and product; a second post replaces the first
*/
func CreateRating(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/products/:id/ratings"
		defer handlePanic(c, route)

		productID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		uid := c.GetString(middleware.UIDKey)
		if uid == "" {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req ratingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		count, err := db.Collection("products").CountDocuments(ctx, bson.M{"_id": productID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		userName := displayNameFor(ctx, db, uid, c.GetString(middleware.EmailKey))

		var saved models.Rating
		err = db.Collection("ratings").FindOneAndUpdate(ctx,
			bson.M{"productId": productID, "uid": uid},
			bson.M{"$set": bson.M{
				"rating":    req.Rating,
				"comment":   strings.TrimSpace(req.Comment),
				"userName":  userName,
				"createdAt": time.Now(),
			}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&saved)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.WithField("productId", productID.Hex()).WithField("rating", req.Rating).Info("rating saved")
		c.JSON(http.StatusCreated, saved)
	}
}

// displayNameFor prefers the stored display name, then the email local part.
func displayNameFor(ctx context.Context, db *mongo.Database, uid, email string) string {
	var user models.User
	err := db.Collection("users").FindOne(ctx, bson.M{"uid": uid},
		options.FindOne().SetProjection(bson.M{"displayName": 1, "email": 1})).Decode(&user)
	if err == nil && strings.TrimSpace(user.DisplayName) != "" {
		return strings.TrimSpace(user.DisplayName)
	}
	if err == nil && user.Email != "" {
		email = user.Email
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "Customer"
}

/*
DELETE /admin/api/ratings/:id
*/
func AdminDeleteRating(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/ratings/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection("ratings").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "rating not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
