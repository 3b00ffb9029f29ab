package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/barrelbook/barrelbook/internal/app"
	"github.com/barrelbook/barrelbook/internal/audit"
	"github.com/barrelbook/barrelbook/internal/inventory"
	"github.com/barrelbook/barrelbook/internal/ledger"
	"github.com/barrelbook/barrelbook/internal/platform/cache"
	"github.com/barrelbook/barrelbook/internal/platform/db"
	"github.com/barrelbook/barrelbook/internal/report"
	"github.com/barrelbook/barrelbook/internal/workflow"
	"github.com/barrelbook/barrelbook/jobs"
	"github.com/barrelbook/barrelbook/render"
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

	mailer := jobs.NewMailer(jobs.MailerConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
	dispatcher := jobs.NewWebhookDispatcher(jobs.NewPGEndpointSource(pool), logger)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, logger)
	lockService := audit.NewLockService(auditRepo, cache.New(redisClient), logger)

	inventoryRepo := inventory.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	calculator := report.NewCalculator(inventoryRepo, ledgerRepo, inventoryRepo, logger)

	artifactStore, err := render.NewFileStore(cfg.ArtifactDir)
	if err != nil {
		logger.Error("init artifact store", slog.Any("error", err))
		os.Exit(1)
	}
	renderer := render.NewRenderer(render.NewClient(cfg.GotenbergURL), artifactStore, logger)

	workflowRepo := workflow.NewRepository(pool)
	workflowService := workflow.NewService(workflowRepo, calculator, renderer, jobsClient, auditService, lockService, logger)
	autoReporter := jobs.NewAutoReporter(jobs.NewPGTenantSource(pool), workflowService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailer.HandleSendEmail},
			{Type: jobs.TaskTypeWebhookDispatch, Handler: dispatcher.HandleDispatch},
			{Type: jobs.TaskTypeAutoReport, Handler: autoReporter.HandleAutoReport},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AutoReportCron, Task: jobs.NewAutoReportTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
