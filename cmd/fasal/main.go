package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasal-erp/fasal-erp/cmd/fasal/cli"
	"github.com/fasal-erp/fasal-erp/internal/app"
	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/cycles"
	"github.com/fasal-erp/fasal-erp/internal/ledger/documents"
	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/recon"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reports"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
	"github.com/fasal-erp/fasal-erp/internal/ledger/settlement"
	"github.com/fasal-erp/fasal-erp/internal/observability"
	"github.com/fasal-erp/fasal-erp/internal/platform/cache"
	"github.com/fasal-erp/fasal-erp/internal/platform/db"
	"github.com/fasal-erp/fasal-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, os.Args[1:], cfg, pool))
	}

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo)

	cycleRepo := cycles.NewRepository(pool)

	postingRepo := posting.NewRepository(pool)
	postingEngine := posting.NewEngine(postingRepo, accountService)

	reversalService := reversal.NewService(postingRepo, accountService)

	settlementRepo := settlement.NewRepository(pool)
	settlementService := settlement.NewService(settlementRepo, postingEngine, settlement.Config{
		ClearingAccountCode: cfg.SettlementClearingCode,
		LandlordControlCode: cfg.LandlordControlCode,
		HariControlCode:     cfg.HariControlCode,
		KamdarControlCode:   cfg.KamdarControlCode,
		CurrencyCode:        cfg.CurrencyCode,
	})

	reportRepo := reports.NewRepository(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reports.NewService(reportRepo, accountService, reportCache)
	settlementService.WithCache(reportCache)

	reconRepo := recon.NewRepository(pool)
	reconService := recon.NewService(reconRepo)

	documentRepo := documents.NewRepository(pool)
	documentService := documents.NewService(postingEngine, reversalService, documentRepo)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountsHandler:   accounts.NewHandler(logger, accountService),
		CyclesHandler:     cycles.NewHandler(logger, cycleRepo),
		PostingHandler:    posting.NewHandler(logger, postingEngine).WithMetrics(metrics.PostingsTotal),
		ReversalHandler:   reversal.NewHandler(logger, reversalService).WithMetrics(metrics.ReversalsTotal),
		SettlementHandler: settlement.NewHandler(logger, settlementService).WithMetrics(metrics.SettlementsTotal),
		ReportsHandler:    reports.NewHandler(logger, reportService),
		ReconHandler:      recon.NewHandler(logger, reconService),
		DocumentsHandler:  documents.NewHandler(logger, documentService),
		JobsHandler:       jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand dispatches operational subcommands instead of serving HTTP.
func runCommand(ctx context.Context, args []string, cfg *app.Config, pool *pgxpool.Pool) int {
	switch args[0] {
	case "integrity":
		fs := flag.NewFlagSet("integrity", flag.ContinueOnError)
		tenantID := fs.Int64("tenant", 0, "tenant id to check")
		jsonOut := fs.Bool("json", false, "print machine-readable output")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		ops, err := cli.NewLedgerOpsCLI(cli.NewPoolBalanceReader(pool))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return ops.IntegrityCommand(ctx, cli.IntegrityOptions{
			TenantID:   *tenantID,
			JSONOutput: *jsonOut,
		})
	case "jobs":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: fasal jobs <trigger <task>|stats>")
			return 1
		}
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer jobsCLI.Close()
		switch args[1] {
		case "trigger":
			if len(args) < 3 {
				fmt.Fprintln(os.Stderr, "usage: fasal jobs trigger <task>")
				return 1
			}
			info, err := jobsCLI.Trigger(ctx, args[2])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			fmt.Printf("enqueued %s id=%s queue=%s\n", args[2], info.ID, info.Queue)
			return 0
		case "stats":
			stats, err := jobsCLI.InspectQueue(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return 0
		default:
			fmt.Fprintf(os.Stderr, "unknown jobs subcommand %q\n", args[1])
			return 1
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		return 1
	}
}
