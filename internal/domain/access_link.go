package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessLink is the capability record behind a gardener's shareable URL.
// Only a salted hash of the token is stored; the plaintext exists once, in
// the URL handed to the gardener. One link per (plan, gardener) pair;
// rotating a link overwrites the hash and invalidates the old URL
// immediately.
type AccessLink struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID     primitive.ObjectID `bson:"planId" json:"planId"`
	GardenerID primitive.ObjectID `bson:"gardenerId" json:"gardenerId"`
	TokenHash  string             `bson:"tokenHash" json:"-"`
	ExpiresAt  *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// Expired reports whether the link has a hard expiry in the past at now.
// Links without an expiry never expire; plan locking is the only cutoff.
func (l *AccessLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
