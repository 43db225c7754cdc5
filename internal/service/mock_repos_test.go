package service

import (
	"context"
	"sort"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// In-memory repositories mirroring the Mongo implementations' semantics:
// composite-key upserts, $setOnInsert-style skip-if-present copies, and
// modified counts that only tick when a stored value actually changes.

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// --- Plan repo ---

type mockPlanRepo struct {
	plans map[string]*domain.Plan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[string]*domain.Plan)}
}

func planMapKey(year, month int) string {
	return domain.Plan{Year: year, Month: month}.Key()
}

func (m *mockPlanRepo) GetByYearMonth(_ context.Context, year, month int) (*domain.Plan, error) {
	if p, ok := m.plans[planMapKey(year, month)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockPlanRepo) GetOrCreate(_ context.Context, year, month int) (*domain.Plan, error) {
	key := planMapKey(year, month)
	if p, ok := m.plans[key]; ok {
		cp := *p
		return &cp, nil
	}
	p := &domain.Plan{
		ID:        primitive.NewObjectID(),
		Year:      year,
		Month:     month,
		CreatedAt: time.Now().UTC(),
	}
	m.plans[key] = p
	cp := *p
	return &cp, nil
}

func (m *mockPlanRepo) SetLocked(_ context.Context, id primitive.ObjectID, locked bool) error {
	for _, p := range m.plans {
		if p.ID == id {
			p.Locked = locked
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- Gardener repo ---

type mockGardenerRepo struct {
	gardeners map[primitive.ObjectID]*domain.Gardener
}

func newMockGardenerRepo() *mockGardenerRepo {
	return &mockGardenerRepo{gardeners: make(map[primitive.ObjectID]*domain.Gardener)}
}

func (m *mockGardenerRepo) Create(_ context.Context, g *domain.Gardener) (primitive.ObjectID, error) {
	for _, existing := range m.gardeners {
		if existing.Name == g.Name {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	g.ID = primitive.NewObjectID()
	g.CreatedAt = time.Now().UTC()
	cp := *g
	m.gardeners[g.ID] = &cp
	return g.ID, nil
}

func (m *mockGardenerRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Gardener, error) {
	if g, ok := m.gardeners[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockGardenerRepo) GetByName(_ context.Context, name string) (*domain.Gardener, error) {
	for _, g := range m.gardeners {
		if g.Name == name {
			cp := *g
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockGardenerRepo) GetOrCreateByName(ctx context.Context, name string) (*domain.Gardener, error) {
	if g, err := m.GetByName(ctx, name); err == nil {
		return g, nil
	}
	g := &domain.Gardener{Name: name}
	if _, err := m.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (m *mockGardenerRepo) List(_ context.Context) ([]domain.Gardener, error) {
	out := make([]domain.Gardener, 0, len(m.gardeners))
	for _, g := range m.gardeners {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Link repo ---

type mockLinkRepo struct {
	links map[string]*domain.AccessLink
}

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{links: make(map[string]*domain.AccessLink)}
}

func linkMapKey(planID, gardenerID primitive.ObjectID) string {
	return planID.Hex() + ":" + gardenerID.Hex()
}

func (m *mockLinkRepo) Upsert(_ context.Context, link *domain.AccessLink) error {
	cp := *link
	cp.CreatedAt = time.Now().UTC()
	m.links[linkMapKey(link.PlanID, link.GardenerID)] = &cp
	return nil
}

func (m *mockLinkRepo) Get(_ context.Context, planID, gardenerID primitive.ObjectID) (*domain.AccessLink, error) {
	if l, ok := m.links[linkMapKey(planID, gardenerID)]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

// --- Assignment repo ---

type mockAssignmentRepo struct {
	assignments map[string]*domain.Assignment
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{assignments: make(map[string]*domain.Assignment)}
}

func assignmentMapKey(planID, gardenerID primitive.ObjectID, workDate time.Time, address string) string {
	return planID.Hex() + ":" + gardenerID.Hex() + ":" + workDate.UTC().Format("2006-01-02") + ":" + address
}

func (m *mockAssignmentRepo) ListByPlanAndGardener(_ context.Context, planID, gardenerID primitive.ObjectID) ([]domain.Assignment, error) {
	var out []domain.Assignment
	for _, a := range m.assignments {
		if a.PlanID == planID && a.GardenerID == gardenerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

func (m *mockAssignmentRepo) ListByPlan(_ context.Context, planID primitive.ObjectID) ([]domain.Assignment, error) {
	var out []domain.Assignment
	for _, a := range m.assignments {
		if a.PlanID == planID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

func (m *mockAssignmentRepo) BulkUpsert(_ context.Context, planID, gardenerID primitive.ObjectID, rows []domain.AssignmentRow) (int64, int64, error) {
	var upserted, updated int64
	for _, row := range rows {
		workDate := domain.NormalizeWorkDate(row.WorkDate)
		key := assignmentMapKey(planID, gardenerID, workDate, row.Address)
		if existing, ok := m.assignments[key]; ok {
			if existing.Notes != row.Notes {
				existing.Notes = row.Notes
				updated++
			}
			continue
		}
		m.assignments[key] = &domain.Assignment{
			ID:         primitive.NewObjectID(),
			PlanID:     planID,
			GardenerID: gardenerID,
			WorkDate:   workDate,
			Address:    row.Address,
			Notes:      row.Notes,
			CreatedAt:  time.Now().UTC(),
		}
		upserted++
	}
	return upserted, updated, nil
}

func (m *mockAssignmentRepo) DeleteByID(_ context.Context, planID, gardenerID, id primitive.ObjectID) (bool, error) {
	for key, a := range m.assignments {
		if a.ID == id {
			if a.PlanID != planID || a.GardenerID != gardenerID {
				return false, nil
			}
			delete(m.assignments, key)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAssignmentRepo) CopyPlan(ctx context.Context, dstPlanID, gardenerID, srcPlanID primitive.ObjectID) (int64, error) {
	src, err := m.ListByPlanAndGardener(ctx, srcPlanID, gardenerID)
	if err != nil {
		return 0, err
	}
	var created int64
	for _, a := range src {
		key := assignmentMapKey(dstPlanID, gardenerID, a.WorkDate, a.Address)
		if _, ok := m.assignments[key]; ok {
			continue
		}
		m.assignments[key] = &domain.Assignment{
			ID:         primitive.NewObjectID(),
			PlanID:     dstPlanID,
			GardenerID: gardenerID,
			WorkDate:   a.WorkDate,
			Address:    a.Address,
			Notes:      a.Notes,
			CreatedAt:  time.Now().UTC(),
		}
		created++
	}
	return created, nil
}

// --- Submission repo ---

type mockSubmissionRepo struct {
	submissions map[string]*domain.Submission
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{submissions: make(map[string]*domain.Submission)}
}

func (m *mockSubmissionRepo) Get(_ context.Context, planID, gardenerID primitive.ObjectID) (*domain.Submission, error) {
	if s, ok := m.submissions[linkMapKey(planID, gardenerID)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockSubmissionRepo) Submit(_ context.Context, planID, gardenerID primitive.ObjectID, submittedAt time.Time) error {
	key := linkMapKey(planID, gardenerID)
	existing, ok := m.submissions[key]
	if !ok {
		existing = &domain.Submission{
			ID:         primitive.NewObjectID(),
			PlanID:     planID,
			GardenerID: gardenerID,
		}
		m.submissions[key] = existing
	}
	existing.SubmittedAt = submittedAt.UTC()
	existing.Status = domain.StatusPending
	existing.Note = ""
	existing.ReviewedAt = nil
	return nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, planID, gardenerID primitive.ObjectID) error {
	delete(m.submissions, linkMapKey(planID, gardenerID))
	return nil
}

func (m *mockSubmissionRepo) SetStatus(_ context.Context, planID, gardenerID primitive.ObjectID, status domain.SubmissionStatus, note string, reviewedAt time.Time) error {
	s, ok := m.submissions[linkMapKey(planID, gardenerID)]
	if !ok {
		return repository.ErrNotFound
	}
	s.Status = status
	if status == domain.StatusNeedsChanges && note != "" {
		s.Note = note
	} else {
		s.Note = ""
	}
	t := reviewedAt.UTC()
	s.ReviewedAt = &t
	return nil
}

func (m *mockSubmissionRepo) ListByPlan(_ context.Context, planID primitive.ObjectID) ([]domain.Submission, error) {
	var out []domain.Submission
	for _, s := range m.submissions {
		if s.PlanID == planID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSubmissionRepo) CountByPlan(ctx context.Context, planID primitive.ObjectID) (int64, error) {
	subs, err := m.ListByPlan(ctx, planID)
	return int64(len(subs)), err
}
