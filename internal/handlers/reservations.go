package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/notify"
)

const notifyTimeout = 10 * time.Second

// ReservationNotifier sends the new-reservation email.
type ReservationNotifier interface {
	ReservationPlaced(ctx context.Context, payload notify.ReservationEmail) error
}

type reservationRequest struct {
	CustomerName    string            `json:"customerName" binding:"required"`
	CustomerEmail   string            `json:"customerEmail" binding:"required,email"`
	CustomerPhone   string            `json:"customerPhone" binding:"required"`
	ProductID       string            `json:"productId" binding:"required"`
	Quantity        int               `json:"quantity" binding:"required,min=1,max=99"`
	SelectedOptions map[string]string `json:"selectedOptions"`
}

type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// validateSelectedOptions requires one listed value for every product
// option and nothing else.
func validateSelectedOptions(productOptions []models.ProductOption, selected map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(productOptions))
	known := make(map[string]models.ProductOption, len(productOptions))
	for _, option := range productOptions {
		known[option.Name] = option
	}

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		option, ok := known[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown option: %s", name)
		}
		value := strings.TrimSpace(selected[name])
		valid := false
		for _, v := range option.Values {
			if v == value {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("invalid value %q for option %s", value, option.Name)
		}
		out[option.Name] = value
	}

	for _, option := range productOptions {
		if _, ok := out[option.Name]; !ok {
			return nil, fmt.Errorf("option %s must be selected", option.Name)
		}
	}
	return out, nil
}

func reservationEmail(r models.Reservation) notify.ReservationEmail {
	return notify.ReservationEmail{
		ProductName:     r.ProductName,
		ProductPrice:    r.ProductPrice,
		Quantity:        r.Quantity,
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		SelectedOptions: r.SelectedOptions,
		ProductImage:    r.ProductImage,
	}
}

/*
POST /reservations
- snapshots the product and sends the reservation email; a failed email does not fail the reservation
*/
func CreateReservation(db *mongo.Database, notifier ReservationNotifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/reservations"
		defer handlePanic(c, route)

		var req reservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := findProduct(ctx, db, productID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if !product.InStock {
			respondWithError(c, http.StatusConflict, route, "product is out of stock")
			return
		}

		selected, err := validateSelectedOptions(product.Options, req.SelectedOptions)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		reservation := models.Reservation{
			ID:              primitive.NewObjectID(),
			CustomerName:    strings.TrimSpace(req.CustomerName),
			CustomerEmail:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
			CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
			ProductID:       product.ID,
			ProductName:     product.Name,
			ProductPrice:    product.Price,
			ProductImage:    product.Images.First(),
			Quantity:        req.Quantity,
			SelectedOptions: selected,
			Status:          models.StatusPending,
			CreatedAt:       time.Now(),
		}

		if _, err := db.Collection("reservations").InsertOne(ctx, reservation); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		metrics.ReservationCreated()

		notified := false
		if notifier != nil {
			notifyCtx, cancelNotify := context.WithTimeout(context.WithoutCancel(c.Request.Context()), notifyTimeout)
			defer cancelNotify()
			if err := notifier.ReservationPlaced(notifyCtx, reservationEmail(reservation)); err != nil {
				logger.WithError(err).WithField("reservationId", reservation.ID.Hex()).Warn("reservation email failed")
			} else {
				notified = true
			}
		}

		logger.WithField("reservationId", reservation.ID.Hex()).
			WithField("productId", product.ID.Hex()).
			WithField("notified", notified).
			Info("reservation created")

		c.JSON(http.StatusCreated, gin.H{
			"id":       reservation.ID.Hex(),
			"status":   reservation.Status,
			"notified": notified,
		})
	}
}

/*
POST /api/notify/reservation
- forwards a reservation payload as an HTML email
*/
func NotifyReservation(notifier ReservationNotifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/notify/reservation"

		var payload notify.ReservationEmail
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondValidationError(c, err)
			return
		}
		if notifier == nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "email is not configured")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), notifyTimeout)
		defer cancel()

		if err := notifier.ReservationPlaced(ctx, payload); err != nil {
			logger.WithError(err).Warn("notification proxy send failed")
			respondWithError(c, http.StatusBadGateway, route, "failed to send notification")
			return
		}
		c.JSON(http.StatusOK, gin.H{"sent": true})
	}
}

/*
GET /admin/api/reservations
- optional status filter, paginated, newest first
*/
func AdminListReservations(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/reservations"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if raw := c.Query("status"); raw != "" {
			status := normalizeStatus(raw)
			if !isKnownStatus(status) {
				respondWithError(c, http.StatusBadRequest, route, unknownStatusError{status: status}.Error())
				return
			}
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := db.Collection("reservations").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		cursor, err := db.Collection("reservations").Find(ctx, filter, options.Find().
			SetSkip((page-1)*limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		reservations := make([]models.Reservation, 0)
		if err := cursor.All(ctx, &reservations); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       reservations,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

func AdminGetReservation(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/reservations/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var reservation models.Reservation
		err := db.Collection("reservations").FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "reservation not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

/*
PUT /admin/api/reservations/:id/status
- strict: pending -> confirmed -> paid -> shipped, one step at a time, and the write only applies if the status is still the one that was read
- lenient: any known status
*/
func UpdateReservationStatus(db *mongo.Database, strict bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/reservations/:id/status"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req statusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		next := normalizeStatus(req.Status)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var current models.Reservation
		err := db.Collection("reservations").FindOne(ctx, bson.M{"_id": id}).Decode(&current)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "reservation not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		noop, err := checkTransition(current.Status, next, strict)
		var unknown unknownStatusError
		var invalid invalidTransitionError
		switch {
		case errors.As(err, &unknown):
			respondWithError(c, http.StatusBadRequest, route, unknown.Error())
			return
		case errors.As(err, &invalid):
			respondWithError(c, http.StatusConflict, route, invalid.Error())
			return
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "status check failed")
			return
		}
		if noop {
			c.JSON(http.StatusOK, current)
			return
		}

		filter := bson.M{"_id": id}
		if strict {
			filter["status"] = current.Status
		}

		now := time.Now()
		var updated models.Reservation
		err = db.Collection("reservations").FindOneAndUpdate(ctx,
			filter,
			bson.M{"$set": bson.M{"status": next, "statusUpdatedAt": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) && strict {
			respondWithError(c, http.StatusConflict, route, "reservation status changed concurrently")
			return
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "reservation not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		metrics.ReservationStatusChanged(next)
		logger.WithField("reservationId", id.Hex()).
			WithField("from", current.Status).
			WithField("to", next).
			Info("reservation status changed")
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteReservation(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/reservations/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection("reservations").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "reservation not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
