package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gardenplan/internal/domain"
	"gardenplan/internal/export"
	"gardenplan/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LinkHandler serves every gardener-facing endpoint. All of them sit behind
// LinkAuthMiddleware, so by the time a handler runs the (plan, g, t) triple
// has been verified and the AuthContext resolved.
type LinkHandler struct {
	assignmentService service.AssignmentService
	submissionService service.SubmissionService
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(assignmentService service.AssignmentService, submissionService service.SubmissionService) *LinkHandler {
	return &LinkHandler{
		assignmentService: assignmentService,
		submissionService: submissionService,
	}
}

// --- Request/Response Structs ---

type PlanResponse struct {
	ID     string `json:"id"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Key    string `json:"key"`
	Locked bool   `json:"locked"`
}

type GardenerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type SubmissionResponse struct {
	Status      domain.SubmissionStatus `json:"status"`
	SubmittedAt time.Time               `json:"submittedAt"`
	Note        string                  `json:"note,omitempty"`
	ReviewedAt  *time.Time              `json:"reviewedAt,omitempty"`
}

type ResolveResponse struct {
	Plan       PlanResponse        `json:"plan"`
	Gardener   GardenerResponse    `json:"gardener"`
	Submission *SubmissionResponse `json:"submission"`
	Editable   bool                `json:"editable"`
}

type AssignmentResponse struct {
	ID      string `json:"id"`
	Date    string `json:"date"` // YYYY-MM-DD
	Address string `json:"address"`
	Notes   string `json:"notes,omitempty"`
}

type AssignmentRowRequest struct {
	Date    time.Time `json:"date" binding:"required"`
	Address string    `json:"address" binding:"required"`
	Notes   string    `json:"notes"`
}

type BulkUpsertRequest struct {
	Rows []AssignmentRowRequest `json:"rows" binding:"required,min=1,dive"`
}

// --- Handler Methods ---

// Resolve returns the verified plan, gardener and submission state behind a
// link. This is the first call the worker page makes.
func (h *LinkHandler) Resolve(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	c.JSON(http.StatusOK, mapResolveResponse(auth))
}

// ListAssignments returns the gardener's rows for the plan month, ascending
// by work date.
func (h *LinkHandler) ListAssignments(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	assignments, err := h.assignmentService.List(c.Request.Context(), auth.Plan.ID, auth.GardenerID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", "Failed to list assignments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": mapAssignments(assignments)})
}

// BulkUpsert writes a batch of rows for the gardener's month.
func (h *LinkHandler) BulkUpsert(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	var req BulkUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_body", fmt.Sprintf("Validation error: %v", err))
		return
	}

	rows := make([]domain.AssignmentRow, 0, len(req.Rows))
	for _, r := range req.Rows {
		rows = append(rows, domain.AssignmentRow{WorkDate: r.Date, Address: r.Address, Notes: r.Notes})
	}

	result, err := h.assignmentService.BulkUpsert(c.Request.Context(), auth, rows)
	if err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteAssignment removes one row by id, scoped to the caller's plan and
// gardener.
func (h *LinkHandler) DeleteAssignment(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_id", "Invalid assignment id")
		return
	}

	if err := h.assignmentService.Delete(c.Request.Context(), auth, id); err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			jsonError(c, http.StatusNotFound, "not_found", "Assignment not found")
			return
		}
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ImportPrevious copies last month's rows into the current plan. Rows
// already present are skipped, so retrying is harmless.
func (h *LinkHandler) ImportPrevious(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	created, err := h.assignmentService.ImportFromPrevMonth(c.Request.Context(), auth)
	if err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// Submit finalizes the gardener's month for admin review.
func (h *LinkHandler) Submit(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	submission, err := h.submissionService.Submit(c.Request.Context(), auth)
	if err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": mapSubmissionResponse(submission)})
}

// Revert withdraws the submission, re-opening editing.
func (h *LinkHandler) Revert(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	if err := h.submissionService.Revert(c.Request.Context(), auth); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Calendar streams the gardener's month as an iCalendar feed.
func (h *LinkHandler) Calendar(c *gin.Context) {
	auth, err := getAuthContext(c)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	assignments, err := h.assignmentService.List(c.Request.Context(), auth.Plan.ID, auth.GardenerID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "internal", "Failed to list assignments")
		return
	}

	body := export.CalendarICS(auth.Plan, auth.Gardener, assignments)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, auth.Plan.Key()))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// mutationError maps mutation failures shared by the write endpoints.
func (h *LinkHandler) mutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlanLocked):
		jsonError(c, http.StatusLocked, "locked", "Plan is locked")
	case errors.Is(err, service.ErrAlreadySubmitted):
		jsonError(c, http.StatusConflict, "submitted", "Plan already submitted for review")
	case errors.Is(err, service.ErrEmptyAddress), errors.Is(err, service.ErrOutsideMonth):
		jsonError(c, http.StatusBadRequest, "invalid_body", err.Error())
	default:
		jsonError(c, http.StatusInternalServerError, "internal", "An unexpected error occurred")
	}
}

// --- Mapping Helpers ---

func mapResolveResponse(auth *service.AuthContext) ResolveResponse {
	return ResolveResponse{
		Plan: PlanResponse{
			ID:     auth.Plan.ID.Hex(),
			Year:   auth.Plan.Year,
			Month:  auth.Plan.Month,
			Key:    auth.Plan.Key(),
			Locked: auth.Plan.Locked,
		},
		Gardener: GardenerResponse{
			ID:    auth.Gardener.ID.Hex(),
			Name:  auth.Gardener.Name,
			Phone: auth.Gardener.Phone,
		},
		Submission: mapSubmissionResponse(auth.Submission),
		Editable:   auth.Editable(),
	}
}

func mapSubmissionResponse(submission *domain.Submission) *SubmissionResponse {
	if submission == nil {
		return nil
	}
	return &SubmissionResponse{
		Status:      submission.Status,
		SubmittedAt: submission.SubmittedAt,
		Note:        submission.Note,
		ReviewedAt:  submission.ReviewedAt,
	}
}

func mapAssignments(assignments []domain.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, AssignmentResponse{
			ID:      a.ID.Hex(),
			Date:    a.WorkDate.UTC().Format("2006-01-02"),
			Address: a.Address,
			Notes:   a.Notes,
		})
	}
	return out
}
