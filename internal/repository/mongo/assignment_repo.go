package mongo

import (
	"context"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const assignmentCollectionName = "assignments"

// mongoAssignmentRepository implements repository.AssignmentRepository using MongoDB.
type mongoAssignmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAssignmentRepository creates a new assignment repository.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		collection: db.Collection(assignmentCollectionName),
	}
}

// ListByPlanAndGardener returns one gardener's rows for a plan, ascending by
// work date.
func (r *mongoAssignmentRepository) ListByPlanAndGardener(ctx context.Context, planID, gardenerID primitive.ObjectID) ([]domain.Assignment, error) {
	filter := bson.M{"planId": planID, "gardenerId": gardenerID}
	return r.list(ctx, filter)
}

// ListByPlan returns every gardener's rows for a plan, ascending by work date.
func (r *mongoAssignmentRepository) ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Assignment, error) {
	return r.list(ctx, bson.M{"planId": planID})
}

func (r *mongoAssignmentRepository) list(ctx context.Context, filter bson.M) ([]domain.Assignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "workDate", Value: 1}, {Key: "address", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []domain.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// BulkUpsert writes each row with an update keyed on the full uniqueness
// tuple. Duplicate rows inside one batch collapse onto the same document:
// the first op upserts it, later ops match it. Ordered execution keeps that
// guarantee; per-row atomicity is the storage engine's, the batch is not a
// transaction.
func (r *mongoAssignmentRepository) BulkUpsert(ctx context.Context, planID, gardenerID primitive.ObjectID, rows []domain.AssignmentRow) (int64, int64, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UTC()
	ops := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		workDate := domain.NormalizeWorkDate(row.WorkDate)
		filter := bson.M{
			"planId":     planID,
			"gardenerId": gardenerID,
			"workDate":   workDate,
			"address":    row.Address,
		}
		update := bson.M{
			"$set": bson.M{"notes": row.Notes},
			"$setOnInsert": bson.M{
				"planId":     planID,
				"gardenerId": gardenerID,
				"workDate":   workDate,
				"address":    row.Address,
				"createdAt":  now,
			},
		}
		ops = append(ops, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	result, err := r.collection.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return 0, 0, err
	}
	return result.UpsertedCount, result.ModifiedCount, nil
}

// DeleteByID removes a single row, scoped to its owning (plan, gardener) so
// an id guessed from another tenant never matches.
func (r *mongoAssignmentRepository) DeleteByID(ctx context.Context, planID, gardenerID, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "planId": planID, "gardenerId": gardenerID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

// CopyPlan copies the gardener's rows from a source plan using $setOnInsert
// only, so rows already present in the destination are left untouched and
// repeated imports are safe.
func (r *mongoAssignmentRepository) CopyPlan(ctx context.Context, dstPlanID, gardenerID, srcPlanID primitive.ObjectID) (int64, error) {
	src, err := r.ListByPlanAndGardener(ctx, srcPlanID, gardenerID)
	if err != nil {
		return 0, err
	}
	if len(src) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	ops := make([]mongo.WriteModel, 0, len(src))
	for _, a := range src {
		filter := bson.M{
			"planId":     dstPlanID,
			"gardenerId": gardenerID,
			"workDate":   a.WorkDate,
			"address":    a.Address,
		}
		update := bson.M{
			"$setOnInsert": bson.M{
				"planId":     dstPlanID,
				"gardenerId": gardenerID,
				"workDate":   a.WorkDate,
				"address":    a.Address,
				"notes":      a.Notes,
				"createdAt":  now,
			},
		}
		ops = append(ops, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	result, err := r.collection.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, err
	}
	return result.UpsertedCount, nil
}

// EnsureAssignmentIndexes creates necessary indexes for the assignments collection.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "planId", Value: 1},
				{Key: "gardenerId", Value: 1},
				{Key: "workDate", Value: 1},
				{Key: "address", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "planId", Value: 1}, {Key: "workDate", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
