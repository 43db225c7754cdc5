package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Assignment is a single day+address work entry belonging to one gardener
// within one plan. (PlanID, GardenerID, WorkDate, Address) is unique: the
// same gardener may work several addresses on one day, but never the same
// address twice.
type Assignment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID     primitive.ObjectID `bson:"planId" json:"planId"`
	GardenerID primitive.ObjectID `bson:"gardenerId" json:"gardenerId"`
	WorkDate   time.Time          `bson:"workDate" json:"workDate"` // Date-only, midnight UTC
	Address    string             `bson:"address" json:"address"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// AssignmentRow is the caller-supplied shape for bulk upserts: one day, one
// address, optional notes. WorkDate is normalized before it reaches storage.
type AssignmentRow struct {
	WorkDate time.Time
	Address  string
	Notes    string
}
