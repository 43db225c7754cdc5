package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gardener is a worker identity record. Gardeners never log in; every
// request they make is authorized by a per-plan access link instead.
type Gardener struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"` // Unique
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
