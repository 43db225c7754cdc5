package mongo

import (
	"context"
	"time"

	"gardenplan/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const rateLimitCollectionName = "ratelimits"

// mongoRateLimitRepository implements repository.RateLimitRepository with a
// sliding window of hit documents per key. delete-then-count-then-insert is
// not atomic; at this system's request volume an occasional over-admission
// under concurrent bursts is accepted. A TTL index reaps stale hits that the
// inline delete misses.
type mongoRateLimitRepository struct {
	collection *mongo.Collection
}

// NewMongoRateLimitRepository creates a new rate-limit repository.
func NewMongoRateLimitRepository(db *mongo.Database) repository.RateLimitRepository {
	return &mongoRateLimitRepository{
		collection: db.Collection(rateLimitCollectionName),
	}
}

// Allow records one hit for key and reports whether the quota still holds.
func (r *mongoRateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UTC()
	windowStart := now.Add(-window)

	if _, err := r.collection.DeleteMany(ctx, bson.M{
		"key":       key,
		"createdAt": bson.M{"$lt": windowStart},
	}); err != nil {
		return false, err
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"key":       key,
		"createdAt": bson.M{"$gte": windowStart},
	})
	if err != nil {
		return false, err
	}
	if count >= int64(limit) {
		return false, nil
	}

	_, err = r.collection.InsertOne(ctx, bson.M{"key": key, "createdAt": now})
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnsureRateLimitIndexes creates necessary indexes for the ratelimits collection.
func EnsureRateLimitIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "key", Value: 1}, {Key: "createdAt", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(600),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
