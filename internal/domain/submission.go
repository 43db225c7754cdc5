package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionStatus type for the review lifecycle
type SubmissionStatus string

const (
	StatusPending      SubmissionStatus = "pending"       // Submitted, awaiting admin review
	StatusApproved     SubmissionStatus = "approved"      // Admin accepted the month
	StatusNeedsChanges SubmissionStatus = "needs_changes" // Admin sent it back with a note
)

// Valid reports whether s is one of the known review statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusNeedsChanges:
		return true
	}
	return false
}

// Submission marks a gardener's month as finalized. Its absence means the
// gardener is still editing: assignments are mutable iff the plan is
// unlocked and no Submission row exists. Reverting deletes the row outright,
// which is why approval state survives only as long as the row does.
type Submission struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID      primitive.ObjectID `bson:"planId" json:"planId"`
	GardenerID  primitive.ObjectID `bson:"gardenerId" json:"gardenerId"`
	SubmittedAt time.Time          `bson:"submittedAt" json:"submittedAt"`
	Status      SubmissionStatus   `bson:"status" json:"status"`
	Note        string             `bson:"note,omitempty" json:"note,omitempty"`
	ReviewedAt  *time.Time         `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}
