package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrInvalidPlanKey    = errors.New("plan identifier must be YYYY-MM or YYYYMM")
	ErrPlanNotFound      = errors.New("plan not found")
	ErrInvalidGardenerID = errors.New("invalid gardener identifier")
	ErrGardenerNotFound  = errors.New("gardener not found")
	ErrInvalidToken      = errors.New("invalid access token")
	ErrLinkExpired       = errors.New("access link expired")
)

// tokenBytes gives 256 bits of entropy per access token.
const tokenBytes = 32

// AuthContext is the resolved identity behind a valid gardener link.
// Downstream handlers authorize mutations against it without re-verifying.
type AuthContext struct {
	Plan       *domain.Plan
	Gardener   *domain.Gardener
	Submission *domain.Submission // nil until the gardener submits
	GardenerID primitive.ObjectID
}

// Editable reports whether the gardener may mutate assignments right now:
// the plan is unlocked and no submission exists.
func (a *AuthContext) Editable() bool {
	return !a.Plan.Locked && a.Submission == nil
}

// IssuedLink is the one-time result of minting an access link. Token is the
// plaintext; it is never stored and never retrievable again.
type IssuedLink struct {
	Plan      *domain.Plan
	Gardener  *domain.Gardener
	Token     string
	URL       string
	ExpiresAt *time.Time
}

// LinkService mints and verifies the per-gardener, per-plan capability
// tokens that stand in for worker authentication.
type LinkService interface {
	// IssueLink creates or rotates the link for (plan, gardener), creating
	// both on first reference. Rotation invalidates the previous token
	// immediately: only the most recently issued link verifies.
	IssueLink(ctx context.Context, planKey, gardenerName string, expiresAt *time.Time) (*IssuedLink, error)
	// IssueLinksForAll rotates links for every known gardener at once.
	IssueLinksForAll(ctx context.Context, planKey string) ([]IssuedLink, error)
	// Verify resolves (plan, gardener, token) to an AuthContext. Stateless
	// by design: tokens can be rotated and plans locked between requests,
	// so every request re-verifies against the store.
	Verify(ctx context.Context, planStr, gardenerID, token string) (*AuthContext, error)
}

type linkService struct {
	planRepo       repository.PlanRepository
	gardenerRepo   repository.GardenerRepository
	linkRepo       repository.LinkRepository
	submissionRepo repository.SubmissionRepository
	tokenSalt      string
	baseURL        string
	logger         *zap.Logger
	now            func() time.Time
}

// NewLinkService creates a new linkService. baseURL is the public origin
// used to render shareable URLs.
func NewLinkService(
	planRepo repository.PlanRepository,
	gardenerRepo repository.GardenerRepository,
	linkRepo repository.LinkRepository,
	submissionRepo repository.SubmissionRepository,
	tokenSalt, baseURL string,
	logger *zap.Logger,
) LinkService {
	if tokenSalt == "" {
		panic("token salt cannot be empty")
	}
	return &linkService{
		planRepo:       planRepo,
		gardenerRepo:   gardenerRepo,
		linkRepo:       linkRepo,
		submissionRepo: submissionRepo,
		tokenSalt:      tokenSalt,
		baseURL:        baseURL,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *linkService) IssueLink(ctx context.Context, planKey, gardenerName string, expiresAt *time.Time) (*IssuedLink, error) {
	year, month, ok := domain.ParsePlanKey(planKey)
	if !ok {
		return nil, ErrInvalidPlanKey
	}
	plan, err := s.planRepo.GetOrCreate(ctx, year, month)
	if err != nil {
		return nil, err
	}
	gardener, err := s.gardenerRepo.GetOrCreateByName(ctx, gardenerName)
	if err != nil {
		return nil, err
	}
	return s.mint(ctx, plan, gardener, expiresAt)
}

func (s *linkService) IssueLinksForAll(ctx context.Context, planKey string) ([]IssuedLink, error) {
	year, month, ok := domain.ParsePlanKey(planKey)
	if !ok {
		return nil, ErrInvalidPlanKey
	}
	plan, err := s.planRepo.GetOrCreate(ctx, year, month)
	if err != nil {
		return nil, err
	}
	gardeners, err := s.gardenerRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	links := make([]IssuedLink, 0, len(gardeners))
	for i := range gardeners {
		issued, err := s.mint(ctx, plan, &gardeners[i], nil)
		if err != nil {
			return nil, err
		}
		links = append(links, *issued)
	}
	return links, nil
}

func (s *linkService) mint(ctx context.Context, plan *domain.Plan, gardener *domain.Gardener, expiresAt *time.Time) (*IssuedLink, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	link := &domain.AccessLink{
		PlanID:     plan.ID,
		GardenerID: gardener.ID,
		TokenHash:  s.hashToken(token),
		ExpiresAt:  expiresAt,
	}
	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, err
	}

	s.logger.Info("access link issued",
		zap.String("plan", plan.Key()),
		zap.String("gardener", gardener.Name))

	return &IssuedLink{
		Plan:      plan,
		Gardener:  gardener,
		Token:     token,
		URL:       fmt.Sprintf("%s/plan/%s?g=%s&t=%s", s.baseURL, plan.Key(), gardener.ID.Hex(), token),
		ExpiresAt: expiresAt,
	}, nil
}

// Verify applies the failure taxonomy in order; the first failure wins.
// Expiry is checked after the hash so an expired-but-correct token reports
// "link expired" to the gardener rather than "wrong link".
func (s *linkService) Verify(ctx context.Context, planStr, gardenerID, token string) (*AuthContext, error) {
	year, month, ok := domain.ParsePlanKey(planStr)
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

	gid, err := primitive.ObjectIDFromHex(gardenerID)
	if err != nil {
		return nil, ErrInvalidGardenerID
	}

	gardener, err := s.gardenerRepo.GetByID(ctx, gid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGardenerNotFound
		}
		return nil, err
	}

	link, err := s.linkRepo.Get(ctx, plan.ID, gid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !constantTimeEqualHex(link.TokenHash, s.hashToken(token)) {
		return nil, ErrInvalidToken
	}
	if link.Expired(s.now()) {
		return nil, ErrLinkExpired
	}

	submission, err := s.submissionRepo.Get(ctx, plan.ID, gid)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return &AuthContext{
		Plan:       plan,
		Gardener:   gardener,
		Submission: submission,
		GardenerID: gid,
	}, nil
}

func (s *linkService) hashToken(token string) string {
	sum := sha256.Sum256([]byte(s.tokenSalt + token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// constantTimeEqualHex compares two hex digests without leaking the position
// of the first mismatch.
func constantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
