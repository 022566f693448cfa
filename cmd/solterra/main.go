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

	"github.com/solterra/solterra/internal/app"
	"github.com/solterra/solterra/internal/auth"
	"github.com/solterra/solterra/internal/billing"
	"github.com/solterra/solterra/internal/clients"
	"github.com/solterra/solterra/internal/dashboard"
	"github.com/solterra/solterra/internal/gateway"
	"github.com/solterra/solterra/internal/lots"
	"github.com/solterra/solterra/internal/notify"
	"github.com/solterra/solterra/internal/observability"
	"github.com/solterra/solterra/internal/platform/cache"
	"github.com/solterra/solterra/internal/platform/db"
	"github.com/solterra/solterra/internal/referrals"
	"github.com/solterra/solterra/internal/sales"
	"github.com/solterra/solterra/internal/services"
	"github.com/solterra/solterra/internal/shared"
	"github.com/solterra/solterra/jobs"
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey)

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(logger, clientsRepo, gatewayClient, auditLogger)
	clientsHandler := clients.NewHandler(logger, clientsService)

	lotsRepo := lots.NewRepository(pool)
	lotsService := lots.NewService(logger, lotsRepo)
	lotsHandler := lots.NewHandler(logger, lotsService)

	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(logger, notifyRepo, jobClient)
	notifyHandler := notify.NewHandler(logger, notifyService)

	billingRepo := billing.NewRepository(pool)
	issuer := billing.NewIssuer(logger, gatewayClient, billingRepo, metrics)
	reconciler := billing.NewReconciler(logger, billingRepo, notifyService)
	billingHandler := billing.NewHandler(logger, billingRepo, reconciler, metrics, cfg.WebhookToken)

	salesRepo := sales.NewRepository(pool, lotsRepo)
	salesService := sales.NewService(logger, salesRepo, lotsRepo, clientsRepo, issuer, billingRepo, gatewayClient, auditLogger, shared.NewIdempotencyStore(pool))
	salesHandler := sales.NewHandler(logger, salesService)

	servicesRepo := services.NewRepository(pool)
	servicesService := services.NewService(logger, servicesRepo, notifyService)
	servicesHandler := services.NewHandler(logger, servicesService)

	referralsRepo := referrals.NewRepository(pool)
	referralsHandler := referrals.NewHandler(logger, referralsRepo)

	dashboardRepo := dashboard.NewRepository(pool)
	dashboardService := dashboard.NewService(logger, dashboardRepo, salesRepo, notifyRepo, redisClient)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	authMiddleware := auth.NewMiddleware(logger, cfg.JWTSecret, clientsRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Auth:             authMiddleware,
		ClientsHandler:   clientsHandler,
		LotsHandler:      lotsHandler,
		SalesHandler:     salesHandler,
		BillingHandler:   billingHandler,
		ServicesHandler:  servicesHandler,
		NotifyHandler:    notifyHandler,
		ReferralsHandler: referralsHandler,
		DashboardHandler: dashboardHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
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
