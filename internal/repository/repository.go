package repository

import (
	"context"
	"time"

	"gardenplan/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound = RepositoryError("not found")
	ErrConflict = RepositoryError("conflict")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// GardenerRepository defines the interface for interacting with gardener data.
type GardenerRepository interface {
	Create(ctx context.Context, gardener *domain.Gardener) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Gardener, error)
	GetByName(ctx context.Context, name string) (*domain.Gardener, error)
	// GetOrCreateByName inserts the gardener if the name is unknown,
	// otherwise returns the existing record unchanged.
	GetOrCreateByName(ctx context.Context, name string) (*domain.Gardener, error)
	List(ctx context.Context) ([]domain.Gardener, error)
}

// PlanRepository defines the interface for interacting with plan data.
// Plans are unique per (year, month) and created on first reference.
type PlanRepository interface {
	GetByYearMonth(ctx context.Context, year, month int) (*domain.Plan, error)
	GetOrCreate(ctx context.Context, year, month int) (*domain.Plan, error)
	SetLocked(ctx context.Context, id primitive.ObjectID, locked bool) error
}

// LinkRepository defines the interface for interacting with access links.
type LinkRepository interface {
	// Upsert replaces any existing link for (planId, gardenerId). The old
	// token hash is gone after this call, so previously issued URLs stop
	// verifying immediately.
	Upsert(ctx context.Context, link *domain.AccessLink) error
	Get(ctx context.Context, planID, gardenerID primitive.ObjectID) (*domain.AccessLink, error)
}

// AssignmentRepository defines the interface for interacting with assignment data.
type AssignmentRepository interface {
	ListByPlanAndGardener(ctx context.Context, planID, gardenerID primitive.ObjectID) ([]domain.Assignment, error)
	ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Assignment, error)
	// BulkUpsert upserts each row keyed on (planId, gardenerId, workDate,
	// address). Re-sending an unchanged row is a no-op; per-row atomicity
	// comes from the storage engine, the batch is not transactional.
	BulkUpsert(ctx context.Context, planID, gardenerID primitive.ObjectID, rows []domain.AssignmentRow) (upserted, updated int64, err error)
	// DeleteByID deletes only when the row belongs to (planId, gardenerId).
	DeleteByID(ctx context.Context, planID, gardenerID, id primitive.ObjectID) (bool, error)
	// CopyPlan copies rows from srcPlanID into dstPlanID with insert-only
	// semantics: rows already present in the destination are skipped, never
	// overwritten. Returns the number of rows created.
	CopyPlan(ctx context.Context, dstPlanID, gardenerID, srcPlanID primitive.ObjectID) (int64, error)
}

// SubmissionRepository defines the interface for interacting with submission data.
type SubmissionRepository interface {
	Get(ctx context.Context, planID, gardenerID primitive.ObjectID) (*domain.Submission, error)
	// Submit upserts the row for (planId, gardenerId) with a fresh
	// submittedAt and pending status, clearing any prior review fields.
	Submit(ctx context.Context, planID, gardenerID primitive.ObjectID, submittedAt time.Time) error
	// Delete removes the row, re-opening editing. No-op if absent.
	Delete(ctx context.Context, planID, gardenerID primitive.ObjectID) error
	// SetStatus records an admin decision on an existing submission.
	// Returns ErrNotFound when no submission exists.
	SetStatus(ctx context.Context, planID, gardenerID primitive.ObjectID, status domain.SubmissionStatus, note string, reviewedAt time.Time) error
	ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Submission, error)
	CountByPlan(ctx context.Context, planID primitive.ObjectID) (int64, error)
}

// RateLimitRepository is a sliding-window request counter keyed by
// (client, operation). Best effort: delete-then-count-then-insert is not
// atomic, which is acceptable at this system's request volume.
type RateLimitRepository interface {
	// Allow records one hit for key and reports whether the caller is
	// still inside the window's quota.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
