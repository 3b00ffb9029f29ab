package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/barrelbook/barrelbook/internal/app"
	"github.com/barrelbook/barrelbook/internal/audit"
	"github.com/barrelbook/barrelbook/internal/auth"
	"github.com/barrelbook/barrelbook/internal/inventory"
	"github.com/barrelbook/barrelbook/internal/ledger"
	"github.com/barrelbook/barrelbook/internal/observability"
	"github.com/barrelbook/barrelbook/internal/platform/cache"
	"github.com/barrelbook/barrelbook/internal/platform/db"
	"github.com/barrelbook/barrelbook/internal/report"
	"github.com/barrelbook/barrelbook/internal/workflow"
	"github.com/barrelbook/barrelbook/jobs"
	"github.com/barrelbook/barrelbook/render"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	validate := validator.New()

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, logger)
	lockService := audit.NewLockService(auditRepo, cache.New(redisClient), logger)
	auditHandler := audit.NewHandler(auditService, lockService, logger)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, logger)
	inventoryHandler := inventory.NewHandler(inventoryService, logger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, inventoryRepo, lockService, auditService, logger)
	ledgerService.WithMetrics(metrics)
	ledgerHandler := ledger.NewHandler(ledgerService, validate, logger)

	calculator := report.NewCalculator(inventoryRepo, ledgerRepo, inventoryRepo, logger)
	calculator.WithMetrics(metrics)
	reportHandler := report.NewHandler(calculator, logger)

	artifactStore, err := render.NewFileStore(cfg.ArtifactDir)
	if err != nil {
		logger.Error("init artifact store", slog.Any("error", err))
		os.Exit(1)
	}
	renderer := render.NewRenderer(render.NewClient(cfg.GotenbergURL), artifactStore, logger)

	workflowRepo := workflow.NewRepository(pool)
	workflowService := workflow.NewService(workflowRepo, calculator, renderer, jobsClient, auditService, lockService, logger)
	workflowService.WithMetrics(metrics)
	workflowHandler := workflow.NewHandler(workflowService, validate, logger)

	authService := auth.NewService(auth.NewPGRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthService:      authService,
		InventoryHandler: inventoryHandler,
		LedgerHandler:    ledgerHandler,
		ReportHandler:    reportHandler,
		WorkflowHandler:  workflowHandler,
		AuditHandler:     auditHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
