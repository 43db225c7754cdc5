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

const submissionCollectionName = "submissions"

// mongoSubmissionRepository implements repository.SubmissionRepository using MongoDB.
type mongoSubmissionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubmissionRepository creates a new submission repository.
func NewMongoSubmissionRepository(db *mongo.Database) repository.SubmissionRepository {
	return &mongoSubmissionRepository{
		collection: db.Collection(submissionCollectionName),
	}
}

// Get retrieves the submission for (planId, gardenerId), if any.
func (r *mongoSubmissionRepository) Get(ctx context.Context, planID, gardenerID primitive.ObjectID) (*domain.Submission, error) {
	var submission domain.Submission
	filter := bson.M{"planId": planID, "gardenerId": gardenerID}
	err := r.collection.FindOne(ctx, filter).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// Submit upserts the submission as freshly pending. Repeating the call
// resets submittedAt and wipes any earlier review outcome, which is exactly
// the idempotent end state the caller expects.
func (r *mongoSubmissionRepository) Submit(ctx context.Context, planID, gardenerID primitive.ObjectID, submittedAt time.Time) error {
	filter := bson.M{"planId": planID, "gardenerId": gardenerID}
	update := bson.M{
		"$set": bson.M{
			"planId":      planID,
			"gardenerId":  gardenerID,
			"submittedAt": submittedAt.UTC(),
			"status":      domain.StatusPending,
		},
		"$unset": bson.M{"note": "", "reviewedAt": ""},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Delete removes the submission row. Absence is not an error.
func (r *mongoSubmissionRepository) Delete(ctx context.Context, planID, gardenerID primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"planId": planID, "gardenerId": gardenerID})
	return err
}

// SetStatus records an admin decision on an existing submission. A note is
// kept only alongside needs_changes; approving clears it.
func (r *mongoSubmissionRepository) SetStatus(ctx context.Context, planID, gardenerID primitive.ObjectID, status domain.SubmissionStatus, note string, reviewedAt time.Time) error {
	filter := bson.M{"planId": planID, "gardenerId": gardenerID}
	set := bson.M{
		"status":     status,
		"reviewedAt": reviewedAt.UTC(),
	}
	update := bson.M{"$set": set}
	if status == domain.StatusNeedsChanges && note != "" {
		set["note"] = note
	} else {
		update["$unset"] = bson.M{"note": ""}
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByPlan returns all submissions for a plan.
func (r *mongoSubmissionRepository) ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Submission, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var submissions []domain.Submission
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

// CountByPlan counts submissions for a plan.
func (r *mongoSubmissionRepository) CountByPlan(ctx context.Context, planID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"planId": planID})
}

// EnsureSubmissionIndexes creates necessary indexes for the submissions collection.
func EnsureSubmissionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "gardenerId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
