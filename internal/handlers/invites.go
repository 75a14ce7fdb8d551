package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/notify"
)

// InviteNotifier sends the admin invitation email.
type InviteNotifier interface {
	AdminInvite(ctx context.Context, invite notify.InviteEmail) error
}

type inviteRequest struct {
	Email     string `json:"email" binding:"required,email"`
	InvitedBy string `json:"invitedBy"`
}

/*
POST /admin/api/invites
- keyed by lowercased email; inviting again refreshes the invite
*/
func CreateInvite(db *mongo.Database, notifier InviteNotifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/invites"

		var req inviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		invitedBy := strings.TrimSpace(req.InvitedBy)
		if invitedBy == "" {
			invitedBy = c.GetString(middleware.EmailKey)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		admins, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": email, "isAdmin": true})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if admins > 0 {
			respondWithError(c, http.StatusConflict, route, "user is already an admin")
			return
		}

		invite := models.AdminInvite{
			Email:     email,
			InvitedBy: invitedBy,
			Status:    models.InviteStatusPending,
			CreatedAt: time.Now(),
		}
		if _, err := db.Collection("admin_invites").UpdateOne(ctx,
			bson.M{"_id": email},
			bson.M{"$set": bson.M{
				"invitedBy": invite.InvitedBy,
				"status":    invite.Status,
				"createdAt": invite.CreatedAt,
			}},
			options.Update().SetUpsert(true),
		); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		notified := false
		if notifier != nil {
			notifyCtx, cancelNotify := context.WithTimeout(context.WithoutCancel(c.Request.Context()), notifyTimeout)
			defer cancelNotify()
			if err := notifier.AdminInvite(notifyCtx, notify.InviteEmail{Email: email, InvitedBy: invitedBy}); err != nil {
				logger.WithError(err).WithField("email", email).Warn("invite email failed")
			} else {
				notified = true
			}
		}

		logger.WithField("email", email).WithField("notified", notified).Info("admin invite created")
		c.JSON(http.StatusCreated, gin.H{"invite": invite, "notified": notified})
	}
}

func ListInvites(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/invites"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection("admin_invites").Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		invites := make([]models.AdminInvite, 0)
		if err := cursor.All(ctx, &invites); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invites})
	}
}

func DeleteInvite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/invites/:email"

		email := strings.ToLower(strings.TrimSpace(c.Param("email")))
		if email == "" {
			respondWithError(c, http.StatusBadRequest, route, "email required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection("admin_invites").DeleteOne(ctx, bson.M{"_id": email})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "invite not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
