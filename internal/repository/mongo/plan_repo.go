package mongo

import (
	"context"
	"errors"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planCollectionName = "plans"

// mongoPlanRepository implements repository.PlanRepository using MongoDB.
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// GetByYearMonth retrieves the plan for a calendar month.
func (r *mongoPlanRepository) GetByYearMonth(ctx context.Context, year, month int) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.collection.FindOne(ctx, bson.M{"year": year, "month": month}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetOrCreate returns the plan for (year, month), creating it unlocked on
// first reference. The upsert keyed on the (year, month) unique index makes
// concurrent first references converge on a single document.
func (r *mongoPlanRepository) GetOrCreate(ctx context.Context, year, month int) (*domain.Plan, error) {
	filter := bson.M{"year": year, "month": month}
	update := bson.M{
		"$setOnInsert": bson.M{
			"year":      year,
			"month":     month,
			"locked":    false,
			"createdAt": time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var plan domain.Plan
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// SetLocked toggles the plan-wide mutation freeze.
func (r *mongoPlanRepository) SetLocked(ctx context.Context, id primitive.ObjectID, locked bool) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"locked": locked}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanIndexes creates necessary indexes for the plans collection.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
