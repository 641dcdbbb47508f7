package main

import (
	"context"
	"fmt"
	"os"

	"github.com/noah-isme/edt-api/internal/cli"
	"github.com/noah-isme/edt-api/internal/repository"
	"github.com/noah-isme/edt-api/internal/service"
	"github.com/noah-isme/edt-api/pkg/cache"
	"github.com/noah-isme/edt-api/pkg/config"
	"github.com/noah-isme/edt-api/pkg/database"
	"github.com/noah-isme/edt-api/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := service.NewRegistryService(
		repository.NewDepartmentRepository(db),
		repository.NewTrainerRepository(db),
		repository.NewTradeRepository(db),
		repository.NewCompetencyRepository(db),
		repository.NewTrainingYearRepository(db),
		repository.NewRoomRepository(db),
		logr,
	)
	// flushing works whenever Redis is reachable, even with reads disabled
	quotaCache := service.NewQuotaCache(repository.NewSnapshotRepository(redisClient), nil, cfg.Quota.CacheTTL, logr, redisClient != nil)
	quotas := service.NewQuotaService(repository.NewSessionRepository(db), registry, quotaCache, nil, logr)

	app := &cli.App{
		Migrate: func(ctx context.Context, command string, args ...string) error {
			return database.Migrate(db.DB, logr, command, args...)
		},
		Quotas: quotas,
	}

	return cli.NewRootCmd(app).ExecuteContext(context.Background())
}
