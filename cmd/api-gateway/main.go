package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edt-api/api/swagger"
	"github.com/noah-isme/edt-api/internal/handler"
	"github.com/noah-isme/edt-api/internal/middleware"
	"github.com/noah-isme/edt-api/internal/repository"
	"github.com/noah-isme/edt-api/internal/service"
	"github.com/noah-isme/edt-api/pkg/cache"
	"github.com/noah-isme/edt-api/pkg/config"
	"github.com/noah-isme/edt-api/pkg/database"
	"github.com/noah-isme/edt-api/pkg/jobs"
	"github.com/noah-isme/edt-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edt-api/pkg/middleware/requestid"
)

// @title EDT API
// @version 1.0.0
// @description Timetable, quota and planning service for training departments
// @BasePath /
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB, logr, "up"); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	sessionRepo := repository.NewSessionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	registry := service.NewRegistryService(
		repository.NewDepartmentRepository(db),
		repository.NewTrainerRepository(db),
		repository.NewTradeRepository(db),
		repository.NewCompetencyRepository(db),
		repository.NewTrainingYearRepository(db),
		repository.NewRoomRepository(db),
		logr,
	)
	quotaCache := service.NewQuotaCache(repository.NewSnapshotRepository(redisClient), metrics, cfg.Quota.CacheTTL, logr, cfg.Quota.CacheEnabled && redisClient != nil)
	quotas := service.NewQuotaService(sessionRepo, registry, quotaCache, metrics, logr)
	conflicts := service.NewConflictService(sessionRepo, metrics, logr)

	queue := jobs.NewQueue("quota", quotas.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	quotas.SetQueue(queue)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	sessions := service.NewSessionService(registry, quotas, conflicts, sessionRepo, auditRepo, db, validate, metrics, logr,
		service.SessionConfig{DefaultPageSize: cfg.Scheduler.DefaultPageSize})
	planner := service.NewPlannerService(registry, quotas, conflicts, sessionRepo, auditRepo, db, validate, metrics, logr,
		service.PlannerConfig{LookaheadDays: cfg.Scheduler.LookaheadDays})
	reschedule := service.NewRescheduleService(registry, quotas, conflicts, sessionRepo, auditRepo, auditRepo, db, validate, metrics, logr,
		service.RescheduleConfig{SuggestionDays: cfg.Scheduler.SuggestionDays, MaxSuggestions: cfg.Scheduler.MaxSuggestions})
	analysis := service.NewAnalysisService(registry, conflicts, sessionRepo, validate, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Sessions:   handler.NewSessionHandler(sessions),
		Planner:    handler.NewPlannerHandler(planner),
		Reschedule: handler.NewRescheduleHandler(reschedule),
		Quotas:     handler.NewQuotaHandler(quotas, registry),
		Analysis:   handler.NewAnalysisHandler(analysis),
		Metrics:    handler.NewMetricsHandler(metrics.Handler(), db),
	}, handler.RouteOptions{
		Prefix:       cfg.APIPrefix,
		Authenticate: middleware.JWT(authSvc),
		Audit:        auditRepo,
		Logger:       logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
