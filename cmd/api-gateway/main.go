package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/opsgrid-api/api/swagger"
	"github.com/noah-isme/opsgrid-api/internal/handler"
	internalmiddleware "github.com/noah-isme/opsgrid-api/internal/middleware"
	"github.com/noah-isme/opsgrid-api/internal/repository"
	"github.com/noah-isme/opsgrid-api/internal/service"
	"github.com/noah-isme/opsgrid-api/pkg/cache"
	"github.com/noah-isme/opsgrid-api/pkg/config"
	"github.com/noah-isme/opsgrid-api/pkg/database"
	"github.com/noah-isme/opsgrid-api/pkg/jobs"
	"github.com/noah-isme/opsgrid-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/opsgrid-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/opsgrid-api/pkg/middleware/requestid"
	"github.com/noah-isme/opsgrid-api/pkg/storage"
)

// @title OpsGrid API
// @version 1.0.0
// @description Constrained scheduling of recurring tasks across sites, days and time slots.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	cacheRepo := repository.NewCacheRepository(nil, cfg.Redis.Prefix, logr)
	if cfg.Redis.Enabled {
		client, redisErr := cache.NewRedis(ctx, cfg.Redis)
		if redisErr != nil {
			logr.Warn("redis unavailable, schedule cache disabled", zap.Error(redisErr))
		} else {
			cacheRepo = repository.NewCacheRepository(client, cfg.Redis.Prefix, logr)
		}
	}
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.CacheTTL, logr, cfg.Scheduler.CacheEnabled && cacheRepo.Enabled())

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	entryRepo := repository.NewPlanEntryRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	schedulerSvc := service.NewSchedulerService(cacheSvc, metricsSvc, validate, logr, service.SchedulerServiceConfig{
		CacheTTL: cfg.Scheduler.CacheTTL,
		MaxTasks: cfg.Scheduler.MaxTasks,
		MaxCells: cfg.Scheduler.MaxCells,
	})
	planSvc := service.NewPlanService(planRepo, entryRepo, schedulerSvc, db, validate, logr)

	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Schedule: handler.NewScheduleHandler(schedulerSvc),
		Plans:    handler.NewPlanHandler(planSvc),
		Audit:    repository.NewAuditRepository(db),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
			"cache":    cacheRepo.Ping,
		}),
	}

	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		exportQueue, handlers.Exports = setupExports(ctx, cfg, planRepo, entryRepo, exportRepo, metricsSvc, validate, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", handlers.Metrics.Health)
	r.GET("/ready", handlers.Metrics.Ready)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Scheduler.RequestTimeout,
		WriteTimeout:      2 * cfg.Scheduler.RequestTimeout,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
	logr.Info("server stopped")
}

func setupExports(
	ctx context.Context,
	cfg *config.Config,
	plans *repository.PlanRepository,
	entries *repository.PlanEntryRepository,
	exportRepo *repository.ExportJobRepository,
	metrics *service.MetricsService,
	validate *validator.Validate,
	logr *zap.Logger,
) (*jobs.Queue, *handler.ExportHandler) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(plans, entries, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	worker := service.NewExportWorker(exportRepo, exporter, metrics, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		JobTimeout: time.Minute,
		Logger:     logr,
	})
	queue.Start(ctx)
	metrics.TrackQueueDepth("exports", queue.Pending)

	jobSvc := service.NewExportJobService(exportRepo, plans, queue, exporter, validate, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	jobSvc.RecoverPendingJobs(ctx)
	jobSvc.StartCleanup(ctx)

	logr.Info("exports enabled",
		zap.String("storage_dir", store.Root()),
		zap.Int("workers", cfg.Exports.WorkerConcurrency),
	)
	return queue, handler.NewExportHandler(jobSvc)
}
