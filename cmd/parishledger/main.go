package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/parishledger/parishledger/cmd/parishledger/cli"
	"github.com/parishledger/parishledger/internal/app"
	"github.com/parishledger/parishledger/internal/audit"
	"github.com/parishledger/parishledger/internal/ledger/accounts"
	"github.com/parishledger/parishledger/internal/ledger/balance"
	"github.com/parishledger/parishledger/internal/ledger/bank"
	"github.com/parishledger/parishledger/internal/ledger/journals"
	"github.com/parishledger/parishledger/internal/observability"
	"github.com/parishledger/parishledger/internal/platform/db"
	"github.com/parishledger/parishledger/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(dbpool)
	auditTrail := audit.NewTrail(auditRepo, logger, metrics)

	balanceCache := balance.NewCache(redisClient, cfg.TrialBalanceCacheTTL)

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo, auditTrail, balanceCache)

	journalReader := journals.NewReader(dbpool)
	engine := balance.NewEngine(accountsService, journalReader, balanceCache).WithObserver(metrics)

	bankRepo := bank.NewRepository(dbpool)
	bankService := bank.NewService(bankRepo, accountsService, engine, auditTrail)

	// Ops subcommands share the wired services.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "validate":
			os.Exit(cli.NewLedgerOpsCLI(cli.NewPoolScopeSource(dbpool), engine).ValidateCommand(ctx, cli.ValidateOptions{
				Args:   os.Args[2:],
				Stdout: os.Stdout,
				Stderr: os.Stderr,
			}))
		case "scan":
			jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				logger.Error("init jobs cli", slog.Any("error", err))
				os.Exit(1)
			}
			defer jobsCLI.Close()
			info, err := jobsCLI.Trigger(ctx, jobs.TaskLedgerIntegrityScan)
			if err != nil {
				logger.Error("trigger integrity scan", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("integrity scan enqueued", slog.String("task_id", info.ID))
			return
		}
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accounts.NewHandler(logger, accountsService),
		BankHandler:     bank.NewHandler(logger, bankService),
		BalanceHandler:  balance.NewHandler(logger, engine),
		AuditHandler:    audit.NewHandler(logger, auditTrail),
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
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
