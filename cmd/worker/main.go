package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fasal-erp/fasal-erp/internal/app"
	jobmetrics "github.com/fasal-erp/fasal-erp/internal/jobs"
	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reports"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
	"github.com/fasal-erp/fasal-erp/internal/observability"
	"github.com/fasal-erp/fasal-erp/internal/platform/cache"
	"github.com/fasal-erp/fasal-erp/internal/platform/db"
	"github.com/fasal-erp/fasal-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo)
	postingRepo := posting.NewRepository(pool)
	reversalService := reversal.NewService(postingRepo, accountService)

	reportRepo := reports.NewRepository(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reports.NewService(reportRepo, accountService, reportCache)

	metrics := observability.NewMetrics()

	integrityTask, err := jobs.NewIntegrityScanTask(jobs.IntegrityScanPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Metrics:   jobmetrics.NewMetrics(metrics.Registerer()),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrityScan, Handler: jobs.NewIntegrityScanHandler(pool, metrics, logger)},
			{Type: jobs.TaskReportCacheWarmup, Handler: jobs.NewWarmupHandler(reportService, logger)},
			{Type: jobs.TaskControlMigration, Handler: jobs.NewControlMigrationHandler(postingRepo, reversalService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
