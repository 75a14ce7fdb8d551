package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type couponCreateRequest struct {
	Code            string     `json:"code" binding:"required,alphanum,min=3,max=32"`
	DiscountPercent int        `json:"discountPercent" binding:"required,min=1,max=100"`
	Active          *bool      `json:"active"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

// couponUpdateRequest: clearExpiry removes expiresAt.
type couponUpdateRequest struct {
	DiscountPercent *int       `json:"discountPercent" binding:"omitempty,min=1,max=100"`
	Active          *bool      `json:"active"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	ClearExpiry     bool       `json:"clearExpiry"`
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isCouponUsable(c models.Coupon, now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.DiscountPercent < 1 || c.DiscountPercent > 100 {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

/*
GET /coupons/:code
- unknown, inactive and expired coupons all answer 404
*/
func GetCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/coupons/:code"
		defer handlePanic(c, route)

		code := normalizeCouponCode(c.Param("code"))
		if code == "" {
			respondWithError(c, http.StatusBadRequest, route, "code required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var coupon models.Coupon
		err := db.Collection("coupons").FindOne(ctx, bson.M{"code": code}).Decode(&coupon)
		if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && !isCouponUsable(coupon, time.Now())) {
			respondWithError(c, http.StatusNotFound, route, "coupon not found or expired")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"code":            coupon.Code,
			"discountPercent": coupon.DiscountPercent,
			"expiresAt":       coupon.ExpiresAt,
		})
	}
}

func AdminListCoupons(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/coupons"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection("coupons").Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		coupons := make([]models.Coupon, 0)
		if err := cursor.All(ctx, &coupons); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": coupons})
	}
}

func CreateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/coupons"

		var req couponCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		coupon := models.Coupon{
			ID:              primitive.NewObjectID(),
			Code:            normalizeCouponCode(req.Code),
			DiscountPercent: req.DiscountPercent,
			Active:          true,
			ExpiresAt:       req.ExpiresAt,
			CreatedAt:       time.Now(),
		}
		if req.Active != nil {
			coupon.Active = *req.Active
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if _, err := db.Collection("coupons").InsertOne(ctx, coupon); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "coupon code already exists")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.WithField("code", coupon.Code).Info("coupon created")
		c.JSON(http.StatusCreated, coupon)
	}
}

func UpdateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/coupons/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req couponUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{}
		if req.DiscountPercent != nil {
			set["discountPercent"] = *req.DiscountPercent
		}
		if req.Active != nil {
			set["active"] = *req.Active
		}
		if req.ExpiresAt != nil {
			set["expiresAt"] = *req.ExpiresAt
		}

		update := bson.M{}
		if len(set) > 0 {
			update["$set"] = set
		}
		if req.ClearExpiry {
			update["$unset"] = bson.M{"expiresAt": ""}
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		if req.ClearExpiry && req.ExpiresAt != nil {
			respondWithError(c, http.StatusBadRequest, route, "expiresAt and clearExpiry conflict")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var updated models.Coupon
		err := db.Collection("coupons").FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "coupon not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/coupons/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection("coupons").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "coupon not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
