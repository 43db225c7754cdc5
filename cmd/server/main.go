package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gardenplan/internal/api"
	"gardenplan/internal/config"
	"gardenplan/internal/repository"
	mongorepo "gardenplan/internal/repository/mongo"
	"gardenplan/internal/service"
	"gardenplan/internal/storage"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting gardenplan server")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// --- Database Connection ---
	dbClient, err := mongorepo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal("could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongorepo.DisconnectDB(dbClient); err != nil {
			logger.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("database connection established", zap.String("db", cfg.Database.Name))

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		ensurers := map[string]func(context.Context, *mongo.Collection) error{
			"gardeners":   mongorepo.EnsureGardenerIndexes,
			"plans":       mongorepo.EnsurePlanIndexes,
			"plan_links":  mongorepo.EnsureLinkIndexes,
			"assignments": mongorepo.EnsureAssignmentIndexes,
			"submissions": mongorepo.EnsureSubmissionIndexes,
			"ratelimits":  mongorepo.EnsureRateLimitIndexes,
		}
		for name, ensure := range ensurers {
			if err := ensure(ctx, appDB.Collection(name)); err != nil {
				logger.Warn("failed to create indexes", zap.String("collection", name), zap.Error(err))
			}
		}
		logger.Info("index creation completed")
	}()

	// --- Initialize Repositories ---
	gardenerRepo := mongorepo.NewMongoGardenerRepository(appDB)
	planRepo := mongorepo.NewMongoPlanRepository(appDB)
	linkRepo := mongorepo.NewMongoLinkRepository(appDB)
	assignmentRepo := mongorepo.NewMongoAssignmentRepository(appDB)
	submissionRepo := mongorepo.NewMongoSubmissionRepository(appDB)
	rateLimitRepo := mongorepo.NewMongoRateLimitRepository(appDB)

	// --- Seed Gardeners ---
	if len(cfg.Seed.Gardeners) > 0 {
		seedGardeners(gardenerRepo, cfg.Seed.Gardeners, logger)
	}

	// --- Initialize Report Archive (optional) ---
	var archive storage.ReportArchiver
	if cfg.S3.Enabled {
		archive, err = storage.NewS3Archiver(cfg.S3, logger)
		if err != nil {
			logger.Fatal("failed to initialize report archive storage", zap.Error(err))
		}
	}

	// --- Initialize Services ---
	authService := service.NewAuthService(cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash, cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, logger)
	linkService := service.NewLinkService(planRepo, gardenerRepo, linkRepo, submissionRepo, cfg.Links.TokenSalt, cfg.Server.BaseURL, logger)
	assignmentService := service.NewAssignmentService(planRepo, assignmentRepo, logger)
	submissionService := service.NewSubmissionService(planRepo, submissionRepo, logger)
	adminService := service.NewAdminService(planRepo, gardenerRepo, assignmentRepo, submissionRepo, archive, logger)

	// --- Initialize Gin Engine ---
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, cfg, authService, linkService, assignmentService, submissionService, adminService, rateLimitRepo, logger)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}

func seedGardeners(repo repository.GardenerRepository, names []string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, name := range names {
		if _, err := repo.GetOrCreateByName(ctx, name); err != nil {
			logger.Warn("failed to seed gardener", zap.String("name", name), zap.Error(err))
		}
	}
}
