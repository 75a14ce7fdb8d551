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

type CategoryCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parentId"`
}

// CategoryUpdateRequest: an empty parentId clears the parent.
type CategoryUpdateRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentId"`
}

/*
GET /admin/api/categories
- flat list, newest first
*/
func AdminListCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/categories"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection("categories").Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		categories := make([]models.Category, 0)
		if err := cursor.All(ctx, &categories); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

// resolveParentID checks that raw names an existing category other than self.
func resolveParentID(ctx context.Context, db *mongo.Database, self primitive.ObjectID, raw string) (*primitive.ObjectID, int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, 0, ""
	}
	parentID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid parentId"
	}
	if parentID == self {
		return nil, http.StatusBadRequest, "category cannot be its own parent"
	}
	count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": parentID})
	if err != nil {
		return nil, http.StatusInternalServerError, "db error"
	}
	if count == 0 {
		return nil, http.StatusBadRequest, "parent category not found"
	}
	return &parentID, 0, ""
}

/*
POST /admin/api/categories
- names are unique
*/
func CreateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/categories"

		var req CategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		exists, err := categoryExists(ctx, db, name)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if exists {
			respondWithError(c, http.StatusConflict, route, "category already exists")
			return
		}

		category := models.Category{
			ID:        primitive.NewObjectID(),
			Name:      name,
			CreatedAt: time.Now(),
		}

		parentID, status, message := resolveParentID(ctx, db, category.ID, req.ParentID)
		if status != 0 {
			respondWithError(c, status, route, message)
			return
		}
		category.ParentID = parentID

		if _, err := db.Collection("categories").InsertOne(ctx, category); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.WithField("categoryId", category.ID.Hex()).Info("category created")
		c.JSON(http.StatusCreated, category)
	}
}

// applyCategoryUpdate returns category with the $set and $unset fields applied.
func applyCategoryUpdate(category models.Category, set, unset bson.M) models.Category {
	if name, ok := set["name"].(string); ok {
		category.Name = name
	}
	if parentID, ok := set["parentId"].(primitive.ObjectID); ok {
		category.ParentID = &parentID
	}
	if _, ok := unset["parentId"]; ok {
		category.ParentID = nil
	}
	return category
}

/*
PUT /admin/api/categories/:id
- a rename is carried over to the products filed under the old name
*/
func UpdateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/categories/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		set := bson.M{}
		unset := bson.M{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			count, err := db.Collection("categories").CountDocuments(ctx,
				bson.M{"name": name, "_id": bson.M{"$ne": id}})
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if count > 0 {
				respondWithError(c, http.StatusConflict, route, "category already exists")
				return
			}
			set["name"] = name
		}

		if req.ParentID != nil {
			parentID, status, message := resolveParentID(ctx, db, id, *req.ParentID)
			if status != 0 {
				respondWithError(c, status, route, message)
				return
			}
			if parentID == nil {
				unset["parentId"] = ""
			} else {
				all, err := loadCategories(ctx, db)
				if err != nil {
					respondWithError(c, http.StatusInternalServerError, route, "db error")
					return
				}
				if createsCycle(all, id, *parentID) {
					respondWithError(c, http.StatusBadRequest, route, "parent would create a cycle")
					return
				}
				set["parentId"] = *parentID
			}
		}

		if len(set) == 0 && len(unset) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		update := bson.M{}
		if len(set) > 0 {
			update["$set"] = set
		}
		if len(unset) > 0 {
			update["$unset"] = unset
		}

		var previous models.Category
		err := db.Collection("categories").FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&previous)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		updated := applyCategoryUpdate(previous, set, unset)

		// Products reference their category by name.
		if updated.Name != previous.Name {
			result, err := db.Collection("products").UpdateMany(ctx,
				bson.M{"category": previous.Name},
				bson.M{"$set": bson.M{"category": updated.Name, "updatedAt": time.Now()}},
			)
			if err != nil {
				logger.WithError(err).WithField("categoryId", id.Hex()).Error("category renamed but products kept the old name")
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			logger.WithField("categoryId", id.Hex()).
				WithField("from", previous.Name).
				WithField("to", updated.Name).
				WithField("products", result.ModifiedCount).
				Info("category renamed")
		}

		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/api/categories/:id
- hard delete; children become roots
*/
func DeleteCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/categories/:id"

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection("categories").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}

		orphaned, err := db.Collection("categories").UpdateMany(ctx,
			bson.M{"parentId": id},
			bson.M{"$unset": bson.M{"parentId": ""}},
		)
		if err != nil {
			logger.WithError(err).WithField("categoryId", id.Hex()).Warn("failed to detach child categories")
		} else if orphaned.ModifiedCount > 0 {
			logger.WithField("categoryId", id.Hex()).WithField("children", orphaned.ModifiedCount).Info("child categories detached")
		}

		c.Status(http.StatusNoContent)
	}
}
