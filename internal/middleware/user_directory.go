package middleware

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// UserDirectory answers admin checks from the users collection.
type UserDirectory struct {
	Users *mongo.Collection
}

func (d UserDirectory) IsAdmin(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, nil
	}

	var user models.User
	err := d.Users.FindOne(ctx,
		bson.M{"uid": uid},
		options.FindOne().SetProjection(bson.M{"isAdmin": 1, "role": 1}),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin || user.Role == models.RoleAdmin, nil
}
