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

const gardenerCollectionName = "gardeners"

// mongoGardenerRepository implements repository.GardenerRepository using MongoDB.
type mongoGardenerRepository struct {
	collection *mongo.Collection
}

// NewMongoGardenerRepository creates a new gardener repository.
// It expects a connected *mongo.Database instance.
func NewMongoGardenerRepository(db *mongo.Database) repository.GardenerRepository {
	return &mongoGardenerRepository{
		collection: db.Collection(gardenerCollectionName),
	}
}

// Create inserts a new gardener into the database.
func (r *mongoGardenerRepository) Create(ctx context.Context, gardener *domain.Gardener) (primitive.ObjectID, error) {
	if gardener.Name == "" {
		return primitive.NilObjectID, errors.New("gardener name is required")
	}

	gardener.ID = primitive.NewObjectID()
	gardener.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, gardener)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a gardener by ObjectID.
func (r *mongoGardenerRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Gardener, error) {
	var gardener domain.Gardener
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&gardener)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &gardener, nil
}

// GetByName retrieves a gardener by their unique name.
func (r *mongoGardenerRepository) GetByName(ctx context.Context, name string) (*domain.Gardener, error) {
	var gardener domain.Gardener
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&gardener)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &gardener, nil
}

// GetOrCreateByName inserts the gardener on first reference. The upsert uses
// $setOnInsert so a concurrent create of the same name cannot clobber an
// existing record; the unique index on name backs this up.
func (r *mongoGardenerRepository) GetOrCreateByName(ctx context.Context, name string) (*domain.Gardener, error) {
	if name == "" {
		return nil, errors.New("gardener name is required")
	}

	filter := bson.M{"name": name}
	update := bson.M{
		"$setOnInsert": bson.M{
			"name":      name,
			"createdAt": time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var gardener domain.Gardener
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&gardener); err != nil {
		return nil, err
	}
	return &gardener, nil
}

// List returns all gardeners sorted by name.
func (r *mongoGardenerRepository) List(ctx context.Context) ([]domain.Gardener, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var gardeners []domain.Gardener
	if err := cursor.All(ctx, &gardeners); err != nil {
		return nil, err
	}
	return gardeners, nil
}

// EnsureGardenerIndexes creates necessary indexes for the gardeners collection.
// Call this once during application startup.
func EnsureGardenerIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
