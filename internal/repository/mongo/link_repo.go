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

const linkCollectionName = "plan_links"

// mongoLinkRepository implements repository.LinkRepository using MongoDB.
type mongoLinkRepository struct {
	collection *mongo.Collection
}

// NewMongoLinkRepository creates a new access-link repository.
func NewMongoLinkRepository(db *mongo.Database) repository.LinkRepository {
	return &mongoLinkRepository{
		collection: db.Collection(linkCollectionName),
	}
}

// Upsert writes the link keyed on (planId, gardenerId), replacing the token
// hash and expiry of any previous link for the pair.
func (r *mongoLinkRepository) Upsert(ctx context.Context, link *domain.AccessLink) error {
	if link.TokenHash == "" {
		return errors.New("access link requires a token hash")
	}

	filter := bson.M{"planId": link.PlanID, "gardenerId": link.GardenerID}
	set := bson.M{
		"planId":     link.PlanID,
		"gardenerId": link.GardenerID,
		"tokenHash":  link.TokenHash,
		"createdAt":  time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if link.ExpiresAt != nil {
		set["expiresAt"] = *link.ExpiresAt
	} else {
		// Rotation without a deadline clears any previous one.
		update["$unset"] = bson.M{"expiresAt": ""}
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Get retrieves the link for (planId, gardenerId).
func (r *mongoLinkRepository) Get(ctx context.Context, planID, gardenerID primitive.ObjectID) (*domain.AccessLink, error) {
	var link domain.AccessLink
	filter := bson.M{"planId": planID, "gardenerId": gardenerID}
	err := r.collection.FindOne(ctx, filter).Decode(&link)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// EnsureLinkIndexes creates necessary indexes for the plan_links collection.
// Besides the unique pair index, expired links are reaped by a TTL index
// restricted to documents that actually carry a date-typed expiry.
func EnsureLinkIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "gardenerId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetPartialFilterExpression(bson.M{"expiresAt": bson.M{"$type": "date"}}),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
