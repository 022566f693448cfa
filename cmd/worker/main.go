package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solterra/solterra/internal/app"
	"github.com/solterra/solterra/internal/billing"
	"github.com/solterra/solterra/internal/dashboard"
	"github.com/solterra/solterra/internal/gateway"
	jobmetrics "github.com/solterra/solterra/internal/jobs"
	"github.com/solterra/solterra/internal/lots"
	"github.com/solterra/solterra/internal/notify"
	"github.com/solterra/solterra/internal/platform/cache"
	"github.com/solterra/solterra/internal/platform/db"
	"github.com/solterra/solterra/internal/sales"
	"github.com/solterra/solterra/jobs"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey)
	metrics := jobmetrics.NewMetrics(nil)

	billingRepo := billing.NewRepository(pool)
	retrier := billing.NewRetrier(logger, gatewayClient, billingRepo)

	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(logger, notifyRepo, jobClient)

	lotsRepo := lots.NewRepository(pool)
	salesRepo := sales.NewRepository(pool, lotsRepo)
	dashboardRepo := dashboard.NewRepository(pool)
	dashboardService := dashboard.NewService(logger, dashboardRepo, salesRepo, notifyRepo, redisClient)

	mailJob := jobs.NewMailJob(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, logger, metrics)
	drainJob := jobs.NewOutboxDrainJob(retrier, logger, metrics)
	sweepJob := jobs.NewOverdueSweepJob(billingRepo, notifyService, dashboardService, logger, metrics)

	drainTask, err := jobs.NewOutboxDrainTask(50)
	if err != nil {
		logger.Error("build drain task", slog.Any("error", err))
		os.Exit(1)
	}
	sweepTask, err := jobs.NewOverdueSweepTask(time.Now().UTC())
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskBillingOutboxDrain, Handler: drainJob.Handle},
			{Type: jobs.TaskBillingOverdueSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: drainTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: "0 1 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
