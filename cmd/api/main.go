package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/coach-enroll-api/api/swagger"
	"github.com/noah-isme/coach-enroll-api/internal/handler"
	"github.com/noah-isme/coach-enroll-api/internal/middleware"
	"github.com/noah-isme/coach-enroll-api/internal/models"
	"github.com/noah-isme/coach-enroll-api/internal/repository"
	"github.com/noah-isme/coach-enroll-api/internal/service"
	"github.com/noah-isme/coach-enroll-api/pkg/cache"
	"github.com/noah-isme/coach-enroll-api/pkg/config"
	"github.com/noah-isme/coach-enroll-api/pkg/database"
	"github.com/noah-isme/coach-enroll-api/pkg/export"
	"github.com/noah-isme/coach-enroll-api/pkg/jobs"
	"github.com/noah-isme/coach-enroll-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coach-enroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coach-enroll-api/pkg/middleware/requestid"
	"github.com/noah-isme/coach-enroll-api/pkg/storage"
)

// @title Coach Enroll API
// @version 1.0.0
// @description Recurring session scheduling and pause/reschedule engine for sports coaching enrollments
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, template cache disabled", "error", err)
		redisClient = nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	occurrenceRepo := repository.NewSessionOccurrenceRepository(db)
	pauseRepo := repository.NewPauseRequestRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metrics := service.NewMetricsService()
	notifications := service.NewNotificationService(jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
	}, logr)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	scheduleService := service.NewScheduleService(batchRepo, enrollmentRepo, occurrenceRepo, cacheRepo, metrics, service.SchedulerSettings{
		PauseCutoff:           cfg.Scheduler.PauseCutoff,
		PauseQuota:            cfg.Scheduler.PauseQuota,
		RescheduleHorizonDays: cfg.Scheduler.RescheduleHorizonDays,
		TemplateCacheTTL:      cfg.Scheduler.TemplateCacheTTL,
	}, nil, logr)
	pauseService := service.NewPauseService(scheduleService, occurrenceRepo, pauseRepo, metrics, notifications, nil, logr)
	attendanceService := service.NewAttendanceService(occurrenceRepo, enrollmentRepo, notifications, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, scheduleService, notifications, nil, logr)
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportService := service.NewExportService(enrollmentRepo, occurrenceRepo, fileStore, signer, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	pauseHandler := handler.NewPauseHandler(pauseService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications.Start(ctx)
	defer notifications.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/enrollments", enrollmentHandler.List)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)
	authed.GET("/enrollments/:id/sessions", scheduleHandler.ListOccurrences)
	authed.GET("/enrollments/:id/pauses", pauseHandler.History)
	authed.POST("/enrollments/:id/sessions/:sessionId/pause", pauseHandler.Request)
	authed.POST("/enrollments/:id/export", exportHandler.Generate)

	staff := authed.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleCoach))
	staff.POST("/enrollments", enrollmentHandler.Create)
	staff.POST("/enrollments/:id/top-up", enrollmentHandler.TopUp)
	staff.DELETE("/enrollments/:id", enrollmentHandler.Cancel)
	staff.POST("/schedule/generate", scheduleHandler.Generate)
	staff.PUT("/sessions/:sessionId/attendance", attendanceHandler.Mark)
	staff.DELETE("/sessions/:sessionId/attendance", attendanceHandler.Unmark)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/enrollments/:id/schedule/regenerate", scheduleHandler.Regenerate)

	// Expired exports are swept in the background.
	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := exportService.Cleanup(cfg.Exports.SignedURLTTL)
				if err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					logr.Sugar().Infow("export cleanup", "removed", len(removed))
				}
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	_ = cacheRepo.Close()
	logr.Sugar().Infow("server stopped")
}
