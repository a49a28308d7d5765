package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tawtheeq/tawtheeq-backend/config"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/controller"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/service"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/workflow"
	"github.com/tawtheeq/tawtheeq-backend/internal/db"
	"github.com/tawtheeq/tawtheeq-backend/internal/middleware"
	"github.com/tawtheeq/tawtheeq-backend/internal/router"
	"github.com/tawtheeq/tawtheeq-backend/internal/scheduler"
	"github.com/tawtheeq/tawtheeq-backend/internal/storage"
	ws "github.com/tawtheeq/tawtheeq-backend/internal/websocket"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"github.com/tawtheeq/tawtheeq-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting TAWTHEEQ Backend Server", map[string]interface{}{
		"environment":   cfg.Server.Environment,
		"port":          cfg.Server.Port,
		"workflow_mode": cfg.Workflow.Mode,
		"log_level":     logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed staff accounts (idempotent)
	if err := db.Seed(); err != nil {
		logger.Warn("Failed to seed database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Redis backs the token blacklist and stats caching. The server still
	// works without it, with those features disabled.
	redisAvailable := true
	if err := redis.Init(&cfg.Redis); err != nil {
		logger.Warn("Redis unavailable: token revocation and stats caching disabled", map[string]interface{}{
			"error": err.Error(),
		})
		redisAvailable = false
	} else {
		defer func() {
			if err := redis.Close(); err != nil {
				logger.Error("Failed to close redis connection", err)
			}
		}()
	}

	// Live updates for staff dashboards
	hub := ws.NewHub()
	go hub.Run()

	// Document storage
	blobStore := storage.NewS3Storage(
		cfg.S3.Region,
		cfg.S3.Bucket,
		cfg.S3.AccessKeyID,
		cfg.S3.SecretAccessKey,
		cfg.S3.BaseURL,
	)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	submissionRepo := repository.NewSubmissionRepository(db.GetDB())
	auditRepo := repository.NewAuditLogRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	engine := workflow.NewEngine(workflow.Mode(cfg.Workflow.Mode))
	verificationService := service.NewVerificationService(
		submissionRepo,
		auditRepo,
		blobStore,
		engine,
		hub,
		cfg.Upload.MaxFileSize,
	)
	var statsCache = redis.GetClient()
	if !redisAvailable {
		statsCache = nil
	}
	queryService := service.NewQueryService(submissionRepo, statsCache)
	exportService := service.NewExportService(submissionRepo)
	userService := service.NewUserService(userRepo, auditRepo)

	// Initialize controllers
	authController := controller.NewAuthController(authService, cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, redisAvailable)
	verificationController := controller.NewVerificationController(verificationService, queryService, blobStore)
	adminController := controller.NewAdminController(verificationService, queryService, exportService, auditRepo, blobStore)
	userController := controller.NewUserController(userService)
	wsController := controller.NewWSController(hub)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, redisAvailable)

	// Daily workload snapshots
	var statsScheduler *scheduler.StatsScheduler
	if redisAvailable {
		statsScheduler = scheduler.NewStatsScheduler(submissionRepo)
		if err := statsScheduler.Start(); err != nil {
			logger.Warn("Stats snapshot scheduler not started", map[string]interface{}{
				"error": err.Error(),
			})
			statsScheduler = nil
		}
	}

	// Setup router
	r := router.NewRouter(
		authController,
		verificationController,
		adminController,
		userController,
		wsController,
		authMiddleware,
		cfg,
	)
	engineHTTP := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engineHTTP.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	if statsScheduler != nil {
		statsScheduler.Stop()
	}
	logger.Info("Server stopped successfully")
}
