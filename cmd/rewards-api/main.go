package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/famtime/rewards-api/api/swagger"
	"github.com/famtime/rewards-api/internal/handler"
	"github.com/famtime/rewards-api/internal/middleware"
	"github.com/famtime/rewards-api/internal/repository"
	"github.com/famtime/rewards-api/internal/service"
	"github.com/famtime/rewards-api/pkg/cache"
	"github.com/famtime/rewards-api/pkg/config"
	"github.com/famtime/rewards-api/pkg/database"
	"github.com/famtime/rewards-api/pkg/events"
	"github.com/famtime/rewards-api/pkg/jobs"
	"github.com/famtime/rewards-api/pkg/logger"
	corsmiddleware "github.com/famtime/rewards-api/pkg/middleware/cors"
	reqidmiddleware "github.com/famtime/rewards-api/pkg/middleware/requestid"
	"github.com/famtime/rewards-api/pkg/storage"
)

// @title FamTime Rewards API
// @version 1.0.0
// @description Usage validation and reward economy engine for family screen time.
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache and event publishing", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo *repository.CacheRepository
	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, 5*time.Minute, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metrics, 5*time.Minute, logr, false)
	}

	childRepo := repository.NewChildRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	appRepo := repository.NewAppRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	calculator := service.NewPointCalculator(cfg.Rewards)
	settingsSvc := service.NewSettingsService(settingsRepo, cacheSvc, cfg.Validation.SettingsCacheTTL, validate, logr)
	validationSvc := service.NewValidationService(settingsSvc, metrics, logr)
	ledgerSvc := service.NewLedgerService(ledgerRepo, childRepo, txnRepo, cacheSvc, metrics, logr)
	entitlements := service.NewEntitlementService(cfg.Entitlement)

	var bus *events.Bus
	var hub *events.Hub
	if cfg.Events.Enabled {
		bus = events.NewBus(cfg.Events.BufferSize, logr)
		hub = events.NewHub(logr)
		hubSub, _ := bus.Subscribe()
		go hub.Run(rootCtx, hubSub)
		if cacheRepo != nil && cfg.Events.RedisEnabled {
			sink := events.NewRedisSink(cacheRepo, cfg.Events.ChannelPrefix, logr)
			sinkSub, _ := bus.Subscribe()
			go sink.Run(rootCtx, sinkSub)
		}
	}

	redemptionSvc := service.NewRedemptionService(
		redemptionRepo, childRepo, appRepo, ledgerSvc, calculator, settingsSvc,
		entitlements, bus, metrics, validate, logr,
		service.RedemptionServiceConfig{
			TTL:             cfg.Rewards.RedemptionTTL,
			DailyCapMinutes: cfg.Rewards.DailyCapMinutes,
		})

	var sessionWorker *service.SessionWorker
	var sessionQueue *jobs.Queue
	if cfg.Sessions.AsyncEnabled {
		sessionQueue = jobs.NewQueue("sessions", func(ctx context.Context, job jobs.Job) error {
			return sessionWorker.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Sessions.WorkerConcurrency,
			MaxRetries: cfg.Sessions.WorkerRetries,
			Logger:     logr,
		})
	}
	var earningSvc *service.EarningService
	if sessionQueue != nil {
		earningSvc = service.NewEarningService(sessionRepo, childRepo, appRepo, validationSvc, calculator, ledgerSvc, sessionQueue, bus, validate, logr)
	} else {
		earningSvc = service.NewEarningService(sessionRepo, childRepo, appRepo, validationSvc, calculator, ledgerSvc, nil, bus, validate, logr)
	}
	sessionWorker = service.NewSessionWorker(earningSvc, logr)
	if sessionQueue != nil {
		sessionQueue.Start(rootCtx)
	}

	appSvc := service.NewAppService(appRepo, calculator, validate, logr)
	childSvc := service.NewChildService(childRepo, redemptionRepo, txnRepo, cacheSvc, validate, logr)

	var statementSvc *service.StatementService
	var statementQueue *jobs.Queue
	if cfg.Statements.Enabled {
		store, err := storage.NewLocalStorage(cfg.Statements.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init statement storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Statements.SignedURLSecret, cfg.Statements.SignedURLTTL)
		statementRepo := repository.NewStatementRepository(db)
		exporter := service.NewExportService(txnRepo, childRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Statements.SignedURLTTL,
		}, logr, nil, nil)

		var statementWorker *service.StatementWorker
		statementQueue = jobs.NewQueue("statements", func(ctx context.Context, job jobs.Job) error {
			return statementWorker.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Statements.WorkerConcurrency,
			MaxRetries: cfg.Statements.WorkerRetries,
			Logger:     logr,
		})
		statementWorker = service.NewStatementWorker(statementRepo, exporter, cfg.Statements.WorkerRetries, logr)
		statementSvc = service.NewStatementService(statementRepo, childRepo, statementQueue, exporter, validate, logr, service.StatementServiceConfig{
			ResultTTL:       cfg.Statements.SignedURLTTL,
			CleanupInterval: cfg.Statements.CleanupInterval,
			MaxRetries:      cfg.Statements.WorkerRetries,
		})
		statementQueue.Start(rootCtx)
		statementSvc.RecoverPendingJobs(rootCtx)
		statementSvc.StartCleanup(rootCtx)
	}

	redemptionSvc.StartExpirySweeper(rootCtx)
	metrics.RegisterActiveRedemptionsGauge(func() float64 {
		gaugeCtx, gaugeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer gaugeCancel()
		count, err := redemptionRepo.CountActive(gaugeCtx, time.Now().UTC())
		if err != nil {
			return 0
		}
		return float64(count)
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	handlers := handler.Handlers{
		Sessions:    handler.NewSessionHandler(earningSvc),
		Redemptions: handler.NewRedemptionHandler(redemptionSvc),
		Children:    handler.NewChildHandler(childSvc, ledgerSvc, redemptionSvc),
		Apps:        handler.NewAppHandler(appSvc),
		Metrics:     handler.NewMetricsHandler(metrics, db, redisClient),
	}
	if cfg.Settings.Enabled {
		handlers.Settings = handler.NewSettingsHandler(settingsSvc)
	}
	if statementSvc != nil {
		handlers.Statements = handler.NewStatementHandler(statementSvc)
	}
	if hub != nil {
		handlers.Events = handler.NewEventsHandler(hub, logr)
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
	cancel()
	if sessionQueue != nil {
		sessionQueue.Stop()
	}
	if statementQueue != nil {
		statementQueue.Stop()
	}
	logr.Info("server stopped")
}
