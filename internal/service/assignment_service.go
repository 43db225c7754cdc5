package service

import (
	"context"
	"errors"
	"strings"

	"gardenplan/internal/domain"
	"gardenplan/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrEmptyAddress       = errors.New("assignment address cannot be empty")
	ErrOutsideMonth       = errors.New("assignment date falls outside the plan month")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// BulkUpsertResult reports how a batch landed: rows created vs. rows that
// matched an existing (date, address) pair and were updated in place.
type BulkUpsertResult struct {
	Upserted int64 `json:"upserted"`
	Updated  int64 `json:"updated"`
}

// AssignmentService guards assignment mutation behind the editable
// invariant. The store trusts its callers; the lock/submission gate lives
// here, re-checked on the fresh AuthContext of every request.
type AssignmentService interface {
	List(ctx context.Context, planID, gardenerID primitive.ObjectID) ([]domain.Assignment, error)
	// BulkUpsert normalizes each row's date to midnight UTC and upserts it
	// keyed on (plan, gardener, date, address). Idempotent: resending the
	// same batch creates nothing new.
	BulkUpsert(ctx context.Context, auth *AuthContext, rows []domain.AssignmentRow) (*BulkUpsertResult, error)
	// Delete removes one row, only if it belongs to the caller.
	Delete(ctx context.Context, auth *AuthContext, id primitive.ObjectID) error
	// ImportFromPrevMonth copies last month's rows into this plan, skipping
	// any (date, address) pair already present. Safe to repeat.
	ImportFromPrevMonth(ctx context.Context, auth *AuthContext) (int64, error)
}

type assignmentService struct {
	planRepo       repository.PlanRepository
	assignmentRepo repository.AssignmentRepository
	logger         *zap.Logger
}

// NewAssignmentService creates a new assignmentService.
func NewAssignmentService(planRepo repository.PlanRepository, assignmentRepo repository.AssignmentRepository, logger *zap.Logger) AssignmentService {
	return &assignmentService{
		planRepo:       planRepo,
		assignmentRepo: assignmentRepo,
		logger:         logger,
	}
}

func (s *assignmentService) List(ctx context.Context, planID, gardenerID primitive.ObjectID) ([]domain.Assignment, error) {
	return s.assignmentRepo.ListByPlanAndGardener(ctx, planID, gardenerID)
}

func (s *assignmentService) BulkUpsert(ctx context.Context, auth *AuthContext, rows []domain.AssignmentRow) (*BulkUpsertResult, error) {
	if err := checkEditable(auth); err != nil {
		return nil, err
	}

	normalized := make([]domain.AssignmentRow, 0, len(rows))
	for _, row := range rows {
		address := strings.TrimSpace(row.Address)
		if address == "" {
			return nil, ErrEmptyAddress
		}
		workDate := domain.NormalizeWorkDate(row.WorkDate)
		if !domain.InMonth(workDate, auth.Plan.Year, auth.Plan.Month) {
			return nil, ErrOutsideMonth
		}
		normalized = append(normalized, domain.AssignmentRow{
			WorkDate: workDate,
			Address:  address,
			Notes:    strings.TrimSpace(row.Notes),
		})
	}

	upserted, updated, err := s.assignmentRepo.BulkUpsert(ctx, auth.Plan.ID, auth.GardenerID, normalized)
	if err != nil {
		return nil, err
	}

	s.logger.Info("assignments upserted",
		zap.String("plan", auth.Plan.Key()),
		zap.String("gardener", auth.Gardener.Name),
		zap.Int64("upserted", upserted),
		zap.Int64("updated", updated))

	return &BulkUpsertResult{Upserted: upserted, Updated: updated}, nil
}

func (s *assignmentService) Delete(ctx context.Context, auth *AuthContext, id primitive.ObjectID) error {
	if err := checkEditable(auth); err != nil {
		return err
	}
	deleted, err := s.assignmentRepo.DeleteByID(ctx, auth.Plan.ID, auth.GardenerID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrAssignmentNotFound
	}
	return nil
}

func (s *assignmentService) ImportFromPrevMonth(ctx context.Context, auth *AuthContext) (int64, error) {
	if err := checkEditable(auth); err != nil {
		return 0, err
	}

	prevYear, prevMonth := domain.PrevMonth(auth.Plan.Year, auth.Plan.Month)
	prevPlan, err := s.planRepo.GetByYearMonth(ctx, prevYear, prevMonth)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil // nothing to import
		}
		return 0, err
	}

	created, err := s.assignmentRepo.CopyPlan(ctx, auth.Plan.ID, auth.GardenerID, prevPlan.ID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("assignments imported from previous month",
		zap.String("plan", auth.Plan.Key()),
		zap.String("gardener", auth.Gardener.Name),
		zap.Int64("created", created))
	return created, nil
}

// checkEditable enforces the mutation invariant: !Plan.Locked && Submission == nil.
func checkEditable(auth *AuthContext) error {
	if auth.Plan.Locked {
		return ErrPlanLocked
	}
	if auth.Submission != nil {
		return ErrAlreadySubmitted
	}
	return nil
}
