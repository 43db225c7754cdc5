package service

import (
	"context"
	"errors"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrPlanLocked          = errors.New("plan is locked")
	ErrAlreadySubmitted    = errors.New("plan already submitted for review")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrInvalidReviewStatus = errors.New("review decision must be approved or needs_changes")
	ErrReviewNoteRequired  = errors.New("a note is required when requesting changes")
)

// SubmissionService owns the monthly submission lifecycle:
//
//	editable --submit--> pending --review--> approved | needs_changes
//
// revert deletes the submission from any state, returning the gardener to
// editable. Plan.Locked overlays everything: a locked plan rejects submit
// and revert for every gardener regardless of their individual state.
type SubmissionService interface {
	// Submit finalizes the gardener's month. Only valid while editable;
	// repeated calls while still pending just refresh submittedAt.
	Submit(ctx context.Context, auth *AuthContext) (*domain.Submission, error)
	// Revert deletes the submission, re-opening editing. No-op when no
	// submission exists.
	Revert(ctx context.Context, auth *AuthContext) error
	// Review records the admin decision on an existing submission. The
	// note is kept only for needs_changes.
	Review(ctx context.Context, planKey string, gardenerID primitive.ObjectID, status domain.SubmissionStatus, note string) error
	// Status returns the submission for (plan, gardener), or nil.
	Status(ctx context.Context, planID, gardenerID primitive.ObjectID) (*domain.Submission, error)
	// ListByPlan returns all submissions for a plan (admin dashboard).
	ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Submission, error)
}

type submissionService struct {
	planRepo       repository.PlanRepository
	submissionRepo repository.SubmissionRepository
	logger         *zap.Logger
	now            func() time.Time
}

// NewSubmissionService creates a new submissionService.
func NewSubmissionService(planRepo repository.PlanRepository, submissionRepo repository.SubmissionRepository, logger *zap.Logger) SubmissionService {
	return &submissionService{
		planRepo:       planRepo,
		submissionRepo: submissionRepo,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, auth *AuthContext) (*domain.Submission, error) {
	if auth.Plan.Locked {
		return nil, ErrPlanLocked
	}
	// Submitting while pending is an idempotent refresh; submitting after a
	// review decision is not allowed until the admin reverts first.
	if auth.Submission != nil && auth.Submission.Status != domain.StatusPending {
		return nil, ErrAlreadySubmitted
	}

	submittedAt := s.now().UTC()
	if err := s.submissionRepo.Submit(ctx, auth.Plan.ID, auth.GardenerID, submittedAt); err != nil {
		return nil, err
	}

	s.logger.Info("plan submitted",
		zap.String("plan", auth.Plan.Key()),
		zap.String("gardener", auth.Gardener.Name))

	return s.submissionRepo.Get(ctx, auth.Plan.ID, auth.GardenerID)
}

func (s *submissionService) Revert(ctx context.Context, auth *AuthContext) error {
	if auth.Plan.Locked {
		return ErrPlanLocked
	}
	if auth.Submission == nil {
		return nil
	}
	if err := s.submissionRepo.Delete(ctx, auth.Plan.ID, auth.GardenerID); err != nil {
		return err
	}
	s.logger.Info("submission reverted",
		zap.String("plan", auth.Plan.Key()),
		zap.String("gardener", auth.Gardener.Name))
	return nil
}

func (s *submissionService) Review(ctx context.Context, planKey string, gardenerID primitive.ObjectID, status domain.SubmissionStatus, note string) error {
	if status != domain.StatusApproved && status != domain.StatusNeedsChanges {
		return ErrInvalidReviewStatus
	}
	if status == domain.StatusNeedsChanges && note == "" {
		return ErrReviewNoteRequired
	}

	year, month, ok := domain.ParsePlanKey(planKey)
	if !ok {
		return ErrInvalidPlanKey
	}
	plan, err := s.planRepo.GetByYearMonth(ctx, year, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}

	err = s.submissionRepo.SetStatus(ctx, plan.ID, gardenerID, status, note, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Reviewing a gardener who never submitted is rejected rather
			// than silently creating review state out of thin air.
			return ErrSubmissionNotFound
		}
		return err
	}

	s.logger.Info("submission reviewed",
		zap.String("plan", plan.Key()),
		zap.String("gardenerId", gardenerID.Hex()),
		zap.String("status", string(status)))
	return nil
}

func (s *submissionService) Status(ctx context.Context, planID, gardenerID primitive.ObjectID) (*domain.Submission, error) {
	submission, err := s.submissionRepo.Get(ctx, planID, gardenerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return submission, nil
}

func (s *submissionService) ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Submission, error) {
	return s.submissionRepo.ListByPlan(ctx, planID)
}
