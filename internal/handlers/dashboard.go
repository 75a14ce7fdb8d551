package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"storefront/internal/models"
)

type statusCount struct {
	Status string `bson:"_id"`
	Count  int64  `bson:"count"`
}

// reservationCounts reports every workflow status, zero when absent, and a
// total across all rows.
func reservationCounts(rows []statusCount) map[string]int64 {
	out := make(map[string]int64, len(models.ReservationStatuses)+1)
	for _, s := range models.ReservationStatuses {
		out[s] = 0
	}
	var total int64
	for _, row := range rows {
		out[row.Status] += row.Count
		total += row.Count
	}
	out["total"] = total
	return out
}

/*
GET /admin/api/dashboard
*/
func AdminDashboard(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/dashboard"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var products, categories, users, pendingInvites int64
		var rows []statusCount

		g, gctx := errgroup.WithContext(ctx)
		count := func(target *int64, collection string, filter bson.M) {
			g.Go(func() error {
				n, err := db.Collection(collection).CountDocuments(gctx, filter)
				*target = n
				return err
			})
		}
		count(&products, "products", bson.M{})
		count(&categories, "categories", bson.M{})
		count(&users, "users", bson.M{})
		count(&pendingInvites, "admin_invites", bson.M{"status": models.InviteStatusPending})

		g.Go(func() error {
			cursor, err := db.Collection("reservations").Aggregate(gctx, mongo.Pipeline{
				{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$status"},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
			})
			if err != nil {
				return err
			}
			return cursor.All(gctx, &rows)
		})

		if err := g.Wait(); err != nil {
			logger.WithError(err).Error("dashboard query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"products":       products,
			"categories":     categories,
			"users":          users,
			"pendingInvites": pendingInvites,
			"reservations":   reservationCounts(rows),
		})
	}
}
