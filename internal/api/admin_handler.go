package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/export"
	"gardenplan/internal/repository"
	"gardenplan/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AdminHandler serves the password-authenticated console. Everything except
// Login sits behind AdminAuthMiddleware.
type AdminHandler struct {
	authService       service.AuthService
	linkService       service.LinkService
	submissionService service.SubmissionService
	adminService      service.AdminService
	logger            *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	authService service.AuthService,
	linkService service.LinkService,
	submissionService service.SubmissionService,
	adminService service.AdminService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		authService:       authService,
		linkService:       linkService,
		submissionService: submissionService,
		adminService:      adminService,
		logger:            logger,
	}
}

// --- Request/Response Structs ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type CreateLinksRequest struct {
	Plan string `json:"plan" binding:"required"`
	// GardenerName selects single-link mode; empty means rotate links for
	// every known gardener.
	GardenerName string     `json:"gardenerName"`
	Deadline     *time.Time `json:"deadline"`
}

type IssuedLinkResponse struct {
	GardenerID string     `json:"gardenerId"`
	Gardener   string     `json:"gardener"`
	Token      string     `json:"token"`
	URL        string     `json:"url"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type ReviewRequest struct {
	Plan       string `json:"plan" binding:"required"`
	GardenerID string `json:"gardenerId" binding:"required"`
	Status     string `json:"status" binding:"required,oneof=approved needs_changes"`
	Note       string `json:"note"`
}

type PlanKeyRequest struct {
	Plan string `json:"plan" binding:"required"`
}

type CreateGardenerRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// --- Handler Methods ---

// Login exchanges the admin email+password for a signed session token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", "Invalid credentials payload")
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			jsonError(c, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
			return
		}
		jsonError(c, http.StatusInternalServerError, "internal", "Could not process login")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "token": token})
}

// CreateLinks mints access links: one gardener by name, or all at once.
func (h *AdminHandler) CreateLinks(c *gin.Context) {
	var req CreateLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", fmt.Sprintf("Validation error: %v", err))
		return
	}

	if req.GardenerName != "" {
		issued, err := h.linkService.IssueLink(c.Request.Context(), req.Plan, req.GardenerName, req.Deadline)
		if err != nil {
			h.adminError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"link": mapIssuedLink(issued)})
		return
	}

	issued, err := h.linkService.IssueLinksForAll(c.Request.Context(), req.Plan)
	if err != nil {
		h.adminError(c, err)
		return
	}
	links := make([]IssuedLinkResponse, 0, len(issued))
	for i := range issued {
		links = append(links, mapIssuedLink(&issued[i]))
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

// Overview returns the month's aggregate stats and rows; format=csv or
// format=xlsx streams the report instead of JSON.
func (h *AdminHandler) Overview(c *gin.Context) {
	planKey := c.Query("plan")
	overview, err := h.adminService.Overview(c.Request.Context(), planKey)
	if err != nil {
		h.adminError(c, err)
		return
	}

	switch c.Query("format") {
	case "csv":
		body, err := export.OverviewCSV(overview.Rows)
		if err != nil {
			jsonError(c, http.StatusInternalServerError, "internal", "Failed to render CSV")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, overview.Plan.Key()))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
	case "xlsx":
		body, err := export.OverviewXLSX(overview.Plan.Key(), overview.Rows)
		if err != nil {
			jsonError(c, http.StatusInternalServerError, "internal", "Failed to render workbook")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, overview.Plan.Key()))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", body)
	default:
		c.JSON(http.StatusOK, overview)
	}
}

// ArchiveOverview renders the month's CSV report and stores it in the
// archive bucket.
func (h *AdminHandler) ArchiveOverview(c *gin.Context) {
	var req PlanKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", "plan is required")
		return
	}

	overview, err := h.adminService.Overview(c.Request.Context(), req.Plan)
	if err != nil {
		h.adminError(c, err)
		return
	}
	body, err := export.OverviewCSV(overview.Rows)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", "Failed to render CSV")
		return
	}

	key, err := h.adminService.ArchiveOverview(c.Request.Context(), req.Plan, body)
	if err != nil {
		if errors.Is(err, service.ErrArchiveUnavailable) {
			jsonError(c, http.StatusServiceUnavailable, "archive_unavailable", err.Error())
			return
		}
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "key": key})
}

// ArchiveDownloadURL returns a short-lived direct download link for the
// archived report of a month.
func (h *AdminHandler) ArchiveDownloadURL(c *gin.Context) {
	url, err := h.adminService.ArchiveDownloadURL(c.Request.Context(), c.Query("plan"))
	if err != nil {
		if errors.Is(err, service.ErrArchiveUnavailable) {
			jsonError(c, http.StatusServiceUnavailable, "archive_unavailable", err.Error())
			return
		}
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// DeleteArchive removes a month's archived report from the bucket.
func (h *AdminHandler) DeleteArchive(c *gin.Context) {
	err := h.adminService.DeleteArchivedOverview(c.Request.Context(), c.Query("plan"))
	if err != nil {
		if errors.Is(err, service.ErrArchiveUnavailable) {
			jsonError(c, http.StatusServiceUnavailable, "archive_unavailable", err.Error())
			return
		}
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListSubmissions returns every submission for a plan joined with gardener
// names.
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	summaries, err := h.adminService.ListSubmissions(c.Request.Context(), c.Query("plan"))
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": summaries})
}

// SubmissionDetail returns one gardener's assignments and review state.
func (h *AdminHandler) SubmissionDetail(c *gin.Context) {
	gid, err := primitive.ObjectIDFromHex(c.Query("g"))
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_query", "Invalid gardener id")
		return
	}
	detail, err := h.adminService.SubmissionDetail(c.Request.Context(), c.Query("plan"), gid)
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapDetail(detail))
}

// Review records the admin decision for one submission.
func (h *AdminHandler) Review(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", fmt.Sprintf("Validation error: %v", err))
		return
	}
	gid, err := primitive.ObjectIDFromHex(req.GardenerID)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", "Invalid gardener id")
		return
	}

	err = h.submissionService.Review(c.Request.Context(), req.Plan, gid, domain.SubmissionStatus(req.Status), req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			jsonError(c, http.StatusNotFound, "not_found", "Submission not found")
		case errors.Is(err, service.ErrInvalidReviewStatus), errors.Is(err, service.ErrReviewNoteRequired):
			jsonError(c, http.StatusBadRequest, "invalid_body", err.Error())
		default:
			h.adminError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// LockPlan freezes all gardener mutation for the month.
func (h *AdminHandler) LockPlan(c *gin.Context) {
	h.setLock(c, true)
}

// UnlockPlan lifts the freeze.
func (h *AdminHandler) UnlockPlan(c *gin.Context) {
	h.setLock(c, false)
}

func (h *AdminHandler) setLock(c *gin.Context, locked bool) {
	var req PlanKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", "plan is required")
		return
	}
	if err := h.adminService.SetPlanLocked(c.Request.Context(), req.Plan, locked); err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GardenerReport returns the per-gardener report rows for printing.
func (h *AdminHandler) GardenerReport(c *gin.Context) {
	gid, err := primitive.ObjectIDFromHex(c.Query("g"))
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_query", "Invalid gardener id")
		return
	}
	detail, err := h.adminService.GardenerReport(c.Request.Context(), c.Query("plan"), gid)
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapDetail(detail))
}

// CreateGardener registers a new gardener by name.
func (h *AdminHandler) CreateGardener(c *gin.Context) {
	var req CreateGardenerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", fmt.Sprintf("Validation error: %v", err))
		return
	}
	gardener, err := h.adminService.CreateGardener(c.Request.Context(), req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			jsonError(c, http.StatusConflict, "conflict", "A gardener with this name already exists")
			return
		}
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gardener)
}

// ListGardeners returns all gardeners.
func (h *AdminHandler) ListGardeners(c *gin.Context) {
	gardeners, err := h.adminService.ListGardeners(c.Request.Context())
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gardeners": gardeners})
}

// Remind acknowledges a reminder request. Delivery (SMS/WhatsApp) is out of
// scope; the ack lets the dashboard show who was nudged.
func (h *AdminHandler) Remind(c *gin.Context) {
	email, err := getAdminEmail(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	h.logger.Info("reminder requested", zap.String("admin", email))
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

// adminError maps plan/gardener resolution failures shared by the console
// endpoints.
func (h *AdminHandler) adminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPlanKey):
		jsonError(c, http.StatusBadRequest, "invalid_plan", err.Error())
	case errors.Is(err, service.ErrPlanNotFound), errors.Is(err, service.ErrGardenerNotFound):
		jsonError(c, http.StatusNotFound, "not_found", err.Error())
	default:
		jsonError(c, http.StatusInternalServerError, "internal", "An unexpected error occurred")
	}
}

// --- Mapping Helpers ---

func mapIssuedLink(issued *service.IssuedLink) IssuedLinkResponse {
	return IssuedLinkResponse{
		GardenerID: issued.Gardener.ID.Hex(),
		Gardener:   issued.Gardener.Name,
		Token:      issued.Token,
		URL:        issued.URL,
		ExpiresAt:  issued.ExpiresAt,
	}
}

func mapDetail(detail *service.SubmissionDetail) gin.H {
	return gin.H{
		"gardener": GardenerResponse{
			ID:    detail.Gardener.ID.Hex(),
			Name:  detail.Gardener.Name,
			Phone: detail.Gardener.Phone,
		},
		"submission":  mapSubmissionResponse(detail.Submission),
		"assignments": mapAssignments(detail.Assignments),
	}
}
