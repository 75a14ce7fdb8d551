package remoteconfig

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/logging"
)

const ColorConfigKey = "colorConfig"

type parameter struct {
	Name      string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store keeps named string parameters in the remote_config collection.
type Store struct {
	coll *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{coll: db.Collection("remote_config")}
}

// Parameter returns the raw value, or found=false when it was never set.
func (s *Store) Parameter(ctx context.Context, name string) (string, bool, error) {
	var p parameter
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Value, true, nil
}

func (s *Store) SetParameter(ctx context.Context, name, value string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"value": value, "updatedAt": time.Now()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Colors returns the stored theme. Unset or unparseable values yield the
// defaults; only database failures are returned as errors.
func (s *Store) Colors(ctx context.Context) (ColorConfig, error) {
	raw, found, err := s.Parameter(ctx, ColorConfigKey)
	if err != nil {
		return DefaultColors(), err
	}
	if !found {
		return DefaultColors(), nil
	}

	cfg, err := ParseColorConfig(raw)
	if err != nil {
		logging.Component("remoteconfig").WithError(err).Warn("stored color config unreadable, using defaults")
		return DefaultColors(), nil
	}
	return cfg, nil
}

func (s *Store) SetColors(ctx context.Context, cfg ColorConfig) error {
	encoded, err := cfg.Encode()
	if err != nil {
		return err
	}
	return s.SetParameter(ctx, ColorConfigKey, encoded)
}
