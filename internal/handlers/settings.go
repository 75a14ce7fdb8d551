package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

var publicSettings = map[string]struct{}{
	models.SettingsHomeBanner:    {},
	models.SettingsAboutTimeline: {},
}

var adminSettings = map[string]struct{}{
	models.SettingsHomeBanner:    {},
	models.SettingsAboutTimeline: {},
	models.SettingsNotifications: {},
	models.SettingsTodos:         {},
	models.SettingsWishlist:      {},
}

var settingsValidator = validator.New()

// loadSetting returns the stored document, or an empty value when unset.
func loadSetting(ctx context.Context, db *mongo.Database, key string) (models.SettingsDocument, error) {
	var doc models.SettingsDocument
	err := db.Collection("settings").FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.SettingsDocument{Key: key, Value: map[string]interface{}{}}, nil
	}
	if err != nil {
		return models.SettingsDocument{}, err
	}
	if doc.Value == nil {
		doc.Value = map[string]interface{}{}
	}
	return doc, nil
}

// extractRecipients reads notifications.reservationRecipients, which is a
// []interface{} from JSON and a primitive.A from the database.
func extractRecipients(value map[string]interface{}) []string {
	var items []interface{}
	switch typed := value["reservationRecipients"].(type) {
	case primitive.A:
		items = typed
	case []interface{}:
		items = typed
	case []string:
		return typed
	case string:
		return strings.Split(typed, ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func validateSettingValue(key string, value map[string]interface{}) error {
	if key != models.SettingsNotifications {
		return nil
	}
	for _, addr := range extractRecipients(value) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := settingsValidator.Var(addr, "email"); err != nil {
			return fmt.Errorf("invalid recipient: %s", addr)
		}
	}
	return nil
}

// SettingsRecipients reads reservation email recipients from settings.
type SettingsRecipients struct {
	DB *mongo.Database
}

func (s SettingsRecipients) ReservationRecipients(ctx context.Context) ([]string, error) {
	doc, err := loadSetting(ctx, s.DB, models.SettingsNotifications)
	if err != nil {
		return nil, err
	}
	return extractRecipients(doc.Value), nil
}

func getSetting(db *mongo.Database, route string, allowed map[string]struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		if _, ok := allowed[key]; !ok {
			respondWithError(c, http.StatusNotFound, route, "setting not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		doc, err := loadSetting(ctx, db, key)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

/*
GET /settings/:key
- homeBanner and aboutTimeline only
*/
func GetPublicSetting(db *mongo.Database) gin.HandlerFunc {
	return getSetting(db, "GET /settings/:key", publicSettings)
}

func AdminGetSetting(db *mongo.Database) gin.HandlerFunc {
	return getSetting(db, "GET /admin/api/settings/:key", adminSettings)
}

/*
PUT /admin/api/settings/:key
- body is the whole value object
*/
func AdminPutSetting(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/settings/:key"

		key := c.Param("key")
		if _, ok := adminSettings[key]; !ok {
			respondWithError(c, http.StatusNotFound, route, "setting not found")
			return
		}

		var value map[string]interface{}
		if err := c.ShouldBindJSON(&value); err != nil || value == nil {
			respondWithError(c, http.StatusBadRequest, route, "body must be a JSON object")
			return
		}
		if err := validateSettingValue(key, value); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		doc := models.SettingsDocument{Key: key, Value: value, UpdatedAt: time.Now()}
		if _, err := db.Collection("settings").ReplaceOne(ctx,
			bson.M{"_id": key}, doc, options.Replace().SetUpsert(true)); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.WithField("key", key).Info("settings updated")
		c.JSON(http.StatusOK, doc)
	}
}
