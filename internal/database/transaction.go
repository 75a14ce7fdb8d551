package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// WithTransaction runs fn inside a session transaction when useTxn is set.
// Otherwise fn runs directly and partial writes are possible.
func WithTransaction(ctx context.Context, db *mongo.Database, useTxn bool, fn func(ctx context.Context) error) error {
	if !useTxn {
		return fn(ctx)
	}

	session, err := db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
