package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gardenplan/internal/config"
	"gardenplan/internal/domain"
	"gardenplan/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSessionSecret = "api-test-session-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Service stubs ---

type stubAuthService struct {
	token string
	err   error
}

func (s *stubAuthService) Login(context.Context, string, string) (string, error) {
	return s.token, s.err
}

type stubLinkService struct {
	auth      *service.AuthContext
	verifyErr error
	issued    *service.IssuedLink
	issueErr  error
}

func (s *stubLinkService) IssueLink(context.Context, string, string, *time.Time) (*service.IssuedLink, error) {
	return s.issued, s.issueErr
}

func (s *stubLinkService) IssueLinksForAll(context.Context, string) ([]service.IssuedLink, error) {
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	return []service.IssuedLink{*s.issued}, nil
}

func (s *stubLinkService) Verify(context.Context, string, string, string) (*service.AuthContext, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.auth, nil
}

type stubAssignmentService struct {
	assignments []domain.Assignment
	result      *service.BulkUpsertResult
	created     int64
	err         error
}

func (s *stubAssignmentService) List(context.Context, primitive.ObjectID, primitive.ObjectID) ([]domain.Assignment, error) {
	return s.assignments, s.err
}

func (s *stubAssignmentService) BulkUpsert(context.Context, *service.AuthContext, []domain.AssignmentRow) (*service.BulkUpsertResult, error) {
	return s.result, s.err
}

func (s *stubAssignmentService) Delete(context.Context, *service.AuthContext, primitive.ObjectID) error {
	return s.err
}

func (s *stubAssignmentService) ImportFromPrevMonth(context.Context, *service.AuthContext) (int64, error) {
	return s.created, s.err
}

type stubSubmissionService struct {
	submission *domain.Submission
	err        error
}

func (s *stubSubmissionService) Submit(context.Context, *service.AuthContext) (*domain.Submission, error) {
	return s.submission, s.err
}

func (s *stubSubmissionService) Revert(context.Context, *service.AuthContext) error {
	return s.err
}

func (s *stubSubmissionService) Review(context.Context, string, primitive.ObjectID, domain.SubmissionStatus, string) error {
	return s.err
}

func (s *stubSubmissionService) Status(context.Context, primitive.ObjectID, primitive.ObjectID) (*domain.Submission, error) {
	return s.submission, s.err
}

func (s *stubSubmissionService) ListByPlan(context.Context, primitive.ObjectID) ([]domain.Submission, error) {
	return nil, s.err
}

type stubAdminService struct {
	overview *service.Overview
	err      error
}

func (s *stubAdminService) SetPlanLocked(context.Context, string, bool) error { return s.err }

func (s *stubAdminService) CreateGardener(context.Context, string, string) (*domain.Gardener, error) {
	return &domain.Gardener{ID: primitive.NewObjectID(), Name: "Olena"}, s.err
}

func (s *stubAdminService) ListGardeners(context.Context) ([]domain.Gardener, error) {
	return nil, s.err
}

func (s *stubAdminService) Overview(context.Context, string) (*service.Overview, error) {
	return s.overview, s.err
}

func (s *stubAdminService) ListSubmissions(context.Context, string) ([]service.SubmissionSummary, error) {
	return nil, s.err
}

func (s *stubAdminService) SubmissionDetail(context.Context, string, primitive.ObjectID) (*service.SubmissionDetail, error) {
	return nil, s.err
}

func (s *stubAdminService) GardenerReport(context.Context, string, primitive.ObjectID) (*service.SubmissionDetail, error) {
	return nil, s.err
}

func (s *stubAdminService) ArchiveOverview(context.Context, string, []byte) (string, error) {
	return "", s.err
}

func (s *stubAdminService) ArchiveDownloadURL(context.Context, string) (string, error) {
	return "https://archive.example.com/reports/2026-09.csv", s.err
}

func (s *stubAdminService) DeleteArchivedOverview(context.Context, string) error {
	return s.err
}

type stubRateLimiter struct {
	allowed bool
	err     error
}

func (s *stubRateLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return s.allowed, s.err
}

// --- Harness ---

type routerDeps struct {
	auth       *stubAuthService
	link       *stubLinkService
	assignment *stubAssignmentService
	submission *stubSubmissionService
	admin      *stubAdminService
	limiter    *stubRateLimiter
}

func defaultDeps() *routerDeps {
	return &routerDeps{
		auth:       &stubAuthService{token: "session-token"},
		link:       &stubLinkService{auth: testAuthContext()},
		assignment: &stubAssignmentService{result: &service.BulkUpsertResult{Upserted: 1}},
		submission: &stubSubmissionService{},
		admin:      &stubAdminService{},
		limiter:    &stubRateLimiter{allowed: true},
	}
}

func newTestRouter(deps *routerDeps) *gin.Engine {
	cfg := config.Config{}
	cfg.Auth.SessionSecret = testSessionSecret
	cfg.RateLimit.Limit = 60
	cfg.RateLimit.Window = 10 * time.Minute

	router := gin.New()
	SetupRoutes(router, cfg, deps.auth, deps.link, deps.assignment, deps.submission, deps.admin, deps.limiter, zap.NewNop())
	return router
}

func testAuthContext() *service.AuthContext {
	gid := primitive.NewObjectID()
	return &service.AuthContext{
		Plan:       &domain.Plan{ID: primitive.NewObjectID(), Year: 2026, Month: 9},
		Gardener:   &domain.Gardener{ID: gid, Name: "Olena"},
		GardenerID: gid,
	}
}

func doRequest(router *gin.Engine, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error.Code
}

func adminToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()
	claims := &service.AdminClaims{
		Email: "admin@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "gardenplan",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// --- Tests ---

func TestLinkAuthMiddlewareRequiresQueryTriple(t *testing.T) {
	router := newTestRouter(defaultDeps())

	for _, target := range []string{
		"/api/v1/link/resolve",
		"/api/v1/link/resolve?plan=2026-09",
		"/api/v1/link/resolve?plan=2026-09&g=abc",
		"/api/v1/link/resolve?g=abc&t=tok",
	} {
		w := doRequest(router, http.MethodGet, target, nil, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
		if code := errorCode(t, w); code != "invalid_query" {
			t.Errorf("%s: expected invalid_query, got %s", target, code)
		}
	}
}

func TestLinkAuthMiddlewareErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrInvalidPlanKey, http.StatusBadRequest, "invalid_plan"},
		{service.ErrInvalidGardenerID, http.StatusBadRequest, "invalid_gardener"},
		{service.ErrPlanNotFound, http.StatusNotFound, "not_found"},
		{service.ErrGardenerNotFound, http.StatusNotFound, "not_found"},
		{service.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
		{service.ErrLinkExpired, http.StatusGone, "expired"},
	}
	for _, tc := range cases {
		deps := defaultDeps()
		deps.link.verifyErr = tc.err
		router := newTestRouter(deps)

		w := doRequest(router, http.MethodGet, "/api/v1/link/resolve?plan=2026-09&g=abc&t=tok", nil, nil)
		if w.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		if code := errorCode(t, w); code != tc.code {
			t.Errorf("%v: expected code %s, got %s", tc.err, tc.code, code)
		}
	}
}

func TestResolveReturnsAuthState(t *testing.T) {
	router := newTestRouter(defaultDeps())

	w := doRequest(router, http.MethodGet, "/api/v1/link/resolve?plan=2026-09&g=abc&t=tok", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body ResolveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Plan.Key != "2026-09" {
		t.Errorf("unexpected plan key: %s", body.Plan.Key)
	}
	if body.Gardener.Name != "Olena" {
		t.Errorf("unexpected gardener: %s", body.Gardener.Name)
	}
	if !body.Editable {
		t.Error("expected editable=true for fresh context")
	}
	if body.Submission != nil {
		t.Error("expected nil submission")
	}
}

func TestMutationErrorStatuses(t *testing.T) {
	payload := []byte(`{"rows":[{"date":"2026-09-03T00:00:00Z","address":"12 Lindenstrasse"}]}`)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrPlanLocked, http.StatusLocked, "locked"},
		{service.ErrAlreadySubmitted, http.StatusConflict, "submitted"},
		{service.ErrEmptyAddress, http.StatusBadRequest, "invalid_body"},
		{service.ErrOutsideMonth, http.StatusBadRequest, "invalid_body"},
	}
	for _, tc := range cases {
		deps := defaultDeps()
		deps.assignment.err = tc.err
		router := newTestRouter(deps)

		w := doRequest(router, http.MethodPost, "/api/v1/assignments?plan=2026-09&g=abc&t=tok", payload, nil)
		if w.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		if code := errorCode(t, w); code != tc.code {
			t.Errorf("%v: expected code %s, got %s", tc.err, tc.code, code)
		}
	}
}

func TestBulkUpsertRejectsEmptyBatch(t *testing.T) {
	router := newTestRouter(defaultDeps())

	w := doRequest(router, http.MethodPost, "/api/v1/assignments?plan=2026-09&g=abc&t=tok", []byte(`{"rows":[]}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", w.Code)
	}
}

func TestAdminAuthMiddleware(t *testing.T) {
	router := newTestRouter(defaultDeps())
	target := "/api/v1/admin/gardeners"

	w := doRequest(router, http.MethodGet, target, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing header: expected 401, got %d", w.Code)
	}

	w = doRequest(router, http.MethodGet, target, nil, map[string]string{"Authorization": "Token abc"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad scheme: expected 401, got %d", w.Code)
	}

	expired := adminToken(t, testSessionSecret, time.Now().Add(-time.Hour))
	w = doRequest(router, http.MethodGet, target, nil, map[string]string{"Authorization": "Bearer " + expired})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expired token: expected 401, got %d", w.Code)
	}

	forged := adminToken(t, "wrong-secret", time.Now().Add(time.Hour))
	w = doRequest(router, http.MethodGet, target, nil, map[string]string{"Authorization": "Bearer " + forged})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("forged token: expected 401, got %d", w.Code)
	}

	valid := adminToken(t, testSessionSecret, time.Now().Add(time.Hour))
	w = doRequest(router, http.MethodGet, target, nil, map[string]string{"Authorization": "Bearer " + valid})
	if w.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginEndpoint(t *testing.T) {
	deps := defaultDeps()
	router := newTestRouter(deps)
	target := "/api/v1/admin/login"

	w := doRequest(router, http.MethodPost, target, []byte(`{"email":"nope"}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid payload: expected 400, got %d", w.Code)
	}

	deps.auth.err = service.ErrAuthenticationFailed
	deps.auth.token = ""
	w = doRequest(router, http.MethodPost, target, []byte(`{"email":"admin@example.com","password":"wrongpass1"}`), nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad credentials: expected 401, got %d", w.Code)
	}

	deps.auth.err = nil
	deps.auth.token = "session-token"
	w = doRequest(router, http.MethodPost, target, []byte(`{"email":"admin@example.com","password":"goodpass1"}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Token != "session-token" {
		t.Errorf("expected session token in body, got %q", body.Token)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	deps := defaultDeps()
	deps.limiter.allowed = false
	router := newTestRouter(deps)

	w := doRequest(router, http.MethodGet, "/api/v1/link/resolve?plan=2026-09&g=abc&t=tok", nil, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "rate_limit" {
		t.Errorf("expected rate_limit, got %s", code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	deps := defaultDeps()
	deps.limiter.allowed = false
	deps.limiter.err = context.DeadlineExceeded
	router := newTestRouter(deps)

	w := doRequest(router, http.MethodGet, "/api/v1/link/resolve?plan=2026-09&g=abc&t=tok", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("limiter failure should not block requests, got %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(defaultDeps())

	w := doRequest(router, http.MethodGet, "/ping", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	w = doRequest(router, http.MethodGet, "/ping", nil, map[string]string{"X-Request-ID": "fixed-id"})
	if got := w.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("expected inbound request id to be echoed, got %q", got)
	}
}

func TestCalendarEndpoint(t *testing.T) {
	deps := defaultDeps()
	deps.assignment.assignments = []domain.Assignment{
		{
			ID:       primitive.NewObjectID(),
			WorkDate: time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
			Address:  "12 Lindenstrasse",
		},
	}
	router := newTestRouter(deps)

	w := doRequest(router, http.MethodGet, "/api/v1/calendar.ics?plan=2026-09&g=abc&t=tok", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/calendar; charset=utf-8" {
		t.Errorf("unexpected content type: %s", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("BEGIN:VCALENDAR")) {
		t.Error("body should be an iCalendar feed")
	}
}

func TestOverviewCSVFormat(t *testing.T) {
	deps := defaultDeps()
	deps.admin.overview = &service.Overview{
		Plan: &domain.Plan{Year: 2026, Month: 9},
		Rows: []service.ReportRow{{Date: "2026-09-03", Gardener: "Olena", Address: "12 Lindenstrasse"}},
	}
	router := newTestRouter(deps)

	token := adminToken(t, testSessionSecret, time.Now().Add(time.Hour))
	w := doRequest(router, http.MethodGet, "/api/v1/admin/overview?plan=2026-09&format=csv", nil,
		map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("unexpected content type: %s", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("date,gardener,address,notes")) {
		t.Errorf("missing CSV header: %s", w.Body.String())
	}
}
