package api

import (
	"net/http"

	"gardenplan/internal/config"
	"gardenplan/internal/repository"
	"gardenplan/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes wires middleware and handlers onto the gin engine.
func SetupRoutes(
	router *gin.Engine,
	cfg config.Config,
	authService service.AuthService,
	linkService service.LinkService,
	assignmentService service.AssignmentService,
	submissionService service.SubmissionService,
	adminService service.AdminService,
	rateLimiter repository.RateLimitRepository,
	logger *zap.Logger,
) {
	linkHandler := NewLinkHandler(assignmentService, submissionService)
	adminHandler := NewAdminHandler(authService, linkService, submissionService, adminService, logger)

	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger(logger))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	limit := func(op string) gin.HandlerFunc {
		return RateLimitMiddleware(rateLimiter, op, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger)
	}

	apiV1 := router.Group("/api/v1")

	// Gardener-facing endpoints: authorized by the (plan, g, t) link triple
	// on every request.
	linked := apiV1.Group("")
	linked.Use(LinkAuthMiddleware(linkService))
	{
		linked.GET("/link/resolve", limit("link-resolve"), linkHandler.Resolve)
		linked.GET("/assignments", limit("assignments-get"), linkHandler.ListAssignments)
		linked.POST("/assignments", limit("assignments-post"), linkHandler.BulkUpsert)
		linked.DELETE("/assignments/:id", limit("assignment-delete"), linkHandler.DeleteAssignment)
		linked.POST("/assignments/import-previous", limit("assignments-import"), linkHandler.ImportPrevious)
		linked.POST("/submission", limit("submit"), linkHandler.Submit)
		linked.POST("/submission/revert", limit("revert"), linkHandler.Revert)
		linked.GET("/calendar.ics", limit("calendar"), linkHandler.Calendar)
	}

	// Admin console. Login is rate limited but otherwise open; everything
	// else requires the bearer session token.
	adminGroup := apiV1.Group("/admin")
	adminGroup.POST("/login", limit("admin-login"), adminHandler.Login)

	adminAuthed := adminGroup.Group("")
	adminAuthed.Use(AdminAuthMiddleware(cfg.Auth.SessionSecret))
	{
		adminAuthed.POST("/links", adminHandler.CreateLinks)
		adminAuthed.GET("/overview", adminHandler.Overview)
		adminAuthed.POST("/reports/archive", adminHandler.ArchiveOverview)
		adminAuthed.GET("/reports/archive-url", adminHandler.ArchiveDownloadURL)
		adminAuthed.DELETE("/reports/archive", adminHandler.DeleteArchive)
		adminAuthed.GET("/report", adminHandler.GardenerReport)
		adminAuthed.GET("/submissions", adminHandler.ListSubmissions)
		adminAuthed.GET("/submissions/detail", adminHandler.SubmissionDetail)
		adminAuthed.POST("/submissions/review", adminHandler.Review)
		adminAuthed.POST("/plans/lock", adminHandler.LockPlan)
		adminAuthed.POST("/plans/unlock", adminHandler.UnlockPlan)
		adminAuthed.POST("/gardeners", adminHandler.CreateGardener)
		adminAuthed.GET("/gardeners", adminHandler.ListGardeners)
		adminAuthed.POST("/remind", adminHandler.Remind)
	}
}
