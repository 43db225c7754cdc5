package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/repository"
	"gardenplan/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var ErrArchiveUnavailable = errors.New("report archive storage is not configured")

// ReportRow is one line of the monthly report: who works where on which day.
type ReportRow struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Gardener string `json:"gardener"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
}

// Overview aggregates one plan month for the admin dashboard.
type Overview struct {
	Plan         *domain.Plan `json:"plan"`
	Gardeners    int          `json:"gardeners"`
	Submitted    int64        `json:"submitted"`
	Assignments  int          `json:"assignments"`
	CoverageDays int          `json:"coverageDays"`
	Rows         []ReportRow  `json:"rows"`
}

// SubmissionSummary is one dashboard line: submission state joined with the
// gardener's name.
type SubmissionSummary struct {
	GardenerID  string                  `json:"gardenerId"`
	Gardener    string                  `json:"gardener"`
	Status      domain.SubmissionStatus `json:"status"`
	SubmittedAt time.Time               `json:"submittedAt"`
	Note        string                  `json:"note,omitempty"`
}

// SubmissionDetail is the admin review view for one gardener's month.
type SubmissionDetail struct {
	Gardener    *domain.Gardener    `json:"gardener"`
	Submission  *domain.Submission  `json:"submission,omitempty"`
	Assignments []domain.Assignment `json:"assignments"`
}

// AdminService backs the password-authenticated console: plan locking,
// gardener management and reporting. All callers have already passed the
// admin session guard.
type AdminService interface {
	SetPlanLocked(ctx context.Context, planKey string, locked bool) error
	CreateGardener(ctx context.Context, name, phone string) (*domain.Gardener, error)
	ListGardeners(ctx context.Context) ([]domain.Gardener, error)
	Overview(ctx context.Context, planKey string) (*Overview, error)
	ListSubmissions(ctx context.Context, planKey string) ([]SubmissionSummary, error)
	SubmissionDetail(ctx context.Context, planKey string, gardenerID primitive.ObjectID) (*SubmissionDetail, error)
	GardenerReport(ctx context.Context, planKey string, gardenerID primitive.ObjectID) (*SubmissionDetail, error)
	// ArchiveOverview renders the monthly report as CSV and stores it in
	// the configured archive bucket. Returns the object key.
	ArchiveOverview(ctx context.Context, planKey string, body []byte) (string, error)
	// ArchiveDownloadURL returns a short-lived direct download URL for a
	// previously archived report.
	ArchiveDownloadURL(ctx context.Context, planKey string) (string, error)
	// DeleteArchivedOverview removes an archived report from the bucket.
	DeleteArchivedOverview(ctx context.Context, planKey string) error
}

type adminService struct {
	planRepo       repository.PlanRepository
	gardenerRepo   repository.GardenerRepository
	assignmentRepo repository.AssignmentRepository
	submissionRepo repository.SubmissionRepository
	archive        storage.ReportArchiver // may be nil when not configured
	logger         *zap.Logger
}

// NewAdminService creates a new adminService. archive may be nil; archiving
// then reports ErrArchiveUnavailable.
func NewAdminService(
	planRepo repository.PlanRepository,
	gardenerRepo repository.GardenerRepository,
	assignmentRepo repository.AssignmentRepository,
	submissionRepo repository.SubmissionRepository,
	archive storage.ReportArchiver,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		planRepo:       planRepo,
		gardenerRepo:   gardenerRepo,
		assignmentRepo: assignmentRepo,
		submissionRepo: submissionRepo,
		archive:        archive,
		logger:         logger,
	}
}

func (s *adminService) SetPlanLocked(ctx context.Context, planKey string, locked bool) error {
	plan, err := s.resolvePlan(ctx, planKey)
	if err != nil {
		return err
	}
	if err := s.planRepo.SetLocked(ctx, plan.ID, locked); err != nil {
		return err
	}
	s.logger.Info("plan lock toggled", zap.String("plan", plan.Key()), zap.Bool("locked", locked))
	return nil
}

func (s *adminService) CreateGardener(ctx context.Context, name, phone string) (*domain.Gardener, error) {
	gardener := &domain.Gardener{Name: name, Phone: phone}
	id, err := s.gardenerRepo.Create(ctx, gardener)
	if err != nil {
		return nil, err
	}
	gardener.ID = id
	return gardener, nil
}

func (s *adminService) ListGardeners(ctx context.Context) ([]domain.Gardener, error) {
	return s.gardenerRepo.List(ctx)
}

func (s *adminService) Overview(ctx context.Context, planKey string) (*Overview, error) {
	plan, err := s.resolvePlan(ctx, planKey)
	if err != nil {
		return nil, err
	}

	gardeners, err := s.gardenerRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[primitive.ObjectID]string, len(gardeners))
	for _, g := range gardeners {
		nameByID[g.ID] = g.Name
	}

	assignments, err := s.assignmentRepo.ListByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	submitted, err := s.submissionRepo.CountByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	coverage := make(map[string]struct{})
	rows := make([]ReportRow, 0, len(assignments))
	for _, a := range assignments {
		date := a.WorkDate.UTC().Format("2006-01-02")
		coverage[date] = struct{}{}
		rows = append(rows, ReportRow{
			Date:     date,
			Gardener: nameByID[a.GardenerID],
			Address:  a.Address,
			Notes:    a.Notes,
		})
	}

	return &Overview{
		Plan:         plan,
		Gardeners:    len(gardeners),
		Submitted:    submitted,
		Assignments:  len(assignments),
		CoverageDays: len(coverage),
		Rows:         rows,
	}, nil
}

func (s *adminService) ListSubmissions(ctx context.Context, planKey string) ([]SubmissionSummary, error) {
	plan, err := s.resolvePlan(ctx, planKey)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissionRepo.ListByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	gardeners, err := s.gardenerRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[primitive.ObjectID]string, len(gardeners))
	for _, g := range gardeners {
		nameByID[g.ID] = g.Name
	}

	summaries := make([]SubmissionSummary, 0, len(submissions))
	for _, sub := range submissions {
		summaries = append(summaries, SubmissionSummary{
			GardenerID:  sub.GardenerID.Hex(),
			Gardener:    nameByID[sub.GardenerID],
			Status:      sub.Status,
			SubmittedAt: sub.SubmittedAt,
			Note:        sub.Note,
		})
	}
	return summaries, nil
}

func (s *adminService) SubmissionDetail(ctx context.Context, planKey string, gardenerID primitive.ObjectID) (*SubmissionDetail, error) {
	return s.gardenerDetail(ctx, planKey, gardenerID)
}

func (s *adminService) GardenerReport(ctx context.Context, planKey string, gardenerID primitive.ObjectID) (*SubmissionDetail, error) {
	return s.gardenerDetail(ctx, planKey, gardenerID)
}

func (s *adminService) gardenerDetail(ctx context.Context, planKey string, gardenerID primitive.ObjectID) (*SubmissionDetail, error) {
	plan, err := s.resolvePlan(ctx, planKey)
	if err != nil {
		return nil, err
	}
	gardener, err := s.gardenerRepo.GetByID(ctx, gardenerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGardenerNotFound
		}
		return nil, err
	}
	assignments, err := s.assignmentRepo.ListByPlanAndGardener(ctx, plan.ID, gardenerID)
	if err != nil {
		return nil, err
	}
	submission, err := s.submissionRepo.Get(ctx, plan.ID, gardenerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return &SubmissionDetail{
		Gardener:    gardener,
		Submission:  submission,
		Assignments: assignments,
	}, nil
}

func (s *adminService) ArchiveOverview(ctx context.Context, planKey string, body []byte) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveUnavailable
	}
	plan, err := s.resolvePlan(ctx, planKey)
	if err != nil {
		return "", err
	}

	key := archiveKey(plan)
	if err := s.archive.Put(ctx, key, "text/csv; charset=utf-8", body); err != nil {
		return "", err
	}
	s.logger.Info("report archived", zap.String("plan", plan.Key()), zap.String("key", key))
	return key, nil
}

func (s *adminService) ArchiveDownloadURL(ctx context.Context, planKey string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveUnavailable
	}
	plan, err := s.resolvePlan(ctx, planKey)
	if err != nil {
		return "", err
	}
	return s.archive.GeneratePresignedDownloadURL(ctx, archiveKey(plan), storage.DefaultPresignedURLExpiry)
}

func (s *adminService) DeleteArchivedOverview(ctx context.Context, planKey string) error {
	if s.archive == nil {
		return ErrArchiveUnavailable
	}
	plan, err := s.resolvePlan(ctx, planKey)
	if err != nil {
		return err
	}
	if err := s.archive.DeleteObject(ctx, archiveKey(plan)); err != nil {
		return err
	}
	s.logger.Info("archived report deleted", zap.String("plan", plan.Key()))
	return nil
}

func archiveKey(plan *domain.Plan) string {
	return fmt.Sprintf("reports/%s.csv", plan.Key())
}

func (s *adminService) resolvePlan(ctx context.Context, planKey string) (*domain.Plan, error) {
	year, month, ok := domain.ParsePlanKey(planKey)
	if !ok {
		return nil, ErrInvalidPlanKey
	}
	plan, err := s.planRepo.GetByYearMonth(ctx, year, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}
