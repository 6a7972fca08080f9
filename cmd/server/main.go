package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scribeline/payment-engine/internal/adapters"
	"github.com/scribeline/payment-engine/internal/adapters/postgres"
	"github.com/scribeline/payment-engine/internal/adapters/razorpay"
	"github.com/scribeline/payment-engine/internal/adapters/stripe"
	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/handlers"
	agreementsService "github.com/scribeline/payment-engine/internal/services/agreements"
	checkoutService "github.com/scribeline/payment-engine/internal/services/checkout"
	"github.com/scribeline/payment-engine/internal/services/notification"
	ratesService "github.com/scribeline/payment-engine/internal/services/rates"
	reconcileService "github.com/scribeline/payment-engine/internal/services/reconcile"
	settlementService "github.com/scribeline/payment-engine/internal/services/settlement"
	"github.com/scribeline/payment-engine/pkg/middleware"
	"github.com/scribeline/payment-engine/pkg/observability"
	"github.com/scribeline/payment-engine/pkg/resilience"
	"github.com/scribeline/payment-engine/pkg/resourcemgmt"
	"github.com/scribeline/payment-engine/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Server)
	defer logger.Sync()

	logger.Info("Starting payment engine",
		zap.String("environment", cfg.Server.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	dbPool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Name),
	)

	db := postgres.NewDBExecutor(dbPool)
	agreementRepo := postgres.NewAgreementRepository()
	recordRepo := postgres.NewPaymentRecordRepository()

	// Secrets
	secretManager := initSecretManager(ctx, cfg, logger)
	secretOf := func(path string) string {
		secret, err := secretManager.GetSecret(ctx, path)
		if err != nil {
			logger.Fatal("Failed to resolve secret",
				zap.String("path", path),
				zap.Error(err))
		}
		return secret.Value
	}

	// Gateways
	stripeGateway := stripe.New(stripe.Config{
		APIKey:        secretOf(cfg.Stripe.APIKeyPath),
		WebhookSecret: secretOf(cfg.Stripe.WebhookSecretPath),
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
		Timeout:       cfg.Stripe.SessionTimeout,
	}, logger)

	razorpayGateway := razorpay.New(razorpay.Config{
		KeyID:         secretOf(cfg.Razorpay.KeyIDPath),
		KeySecret:     secretOf(cfg.Razorpay.KeySecretPath),
		WebhookSecret: secretOf(cfg.Razorpay.WebhookSecretPath),
		CallbackURL:   cfg.Razorpay.CallbackURL,
		Timeout:       cfg.Razorpay.SessionTimeout,
	}, logger)

	registry := adapters.NewRegistry(stripeGateway, razorpayGateway)

	// Background services
	rates := ratesService.NewService(cfg.Rates, logger)
	rates.Start(ctx)

	emitter := notification.NewEmitter(cfg.Notifications,
		secretOf(cfg.Notifications.SigningSecretPath), logger)
	emitter.Start(ctx)

	tracker := resourcemgmt.NewGoroutineTracker(logger, resourcemgmt.DefaultConfig())
	go tracker.StartMonitoring(ctx)

	// Application services
	selector := checkoutService.NewSelector(cfg.Selector)
	fees := checkoutService.NewFeeCalculator(cfg.Fees)
	checkout := checkoutService.NewService(db, agreementRepo, recordRepo, registry, rates, selector, fees, logger)
	settlement := settlementService.NewService(db, agreementRepo, recordRepo, registry, emitter, logger)
	reconcile := reconcileService.NewService(db, agreementRepo, recordRepo, registry, settlement, cfg.Reconcile, logger)
	agreements := agreementsService.NewService(db, agreementRepo, logger)

	// Background sweep resolving sessions whose webhook never arrived
	var sweeper *shutdown.PeriodicWorker
	if cfg.Reconcile.SweepInterval > 0 {
		timeouts := resilience.DefaultTimeoutConfig()
		sweeper = shutdown.NewPeriodicWorker("reconcile-sweep", cfg.Reconcile.SweepInterval, logger)
		sweeper.Start(func(ctx context.Context) {
			sweepCtx, sweepCancel := timeouts.SweepContext(ctx)
			defer sweepCancel()
			if _, err := reconcile.FixPaymentStatuses(sweepCtx); err != nil {
				logger.Warn("Background reconcile sweep failed", zap.Error(err))
			}
		})
	}

	// HTTP surface
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	router := handlers.NewRouter(handlers.RouterConfig{
		Checkout:   handlers.NewCheckoutHandler(checkout, logger),
		Webhook:    handlers.NewWebhookHandler(registry, settlement, logger),
		Verify:     handlers.NewVerifyHandler(settlement, logger),
		Admin:      handlers.NewAdminHandler(reconcile, cfg.Server.AdminToken, logger),
		Agreements: handlers.NewAgreementHandler(agreements, logger),
		Limiter:    rateLimiter,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	healthChecker := observability.NewHealthChecker(dbPool)
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Observability.MetricsPort), healthChecker)

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Components shut down in reverse registration order: servers stop
	// accepting work first, then background workers drain, then the shared
	// context is cancelled. The database pool closes last via defer.
	shutdownManager := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	shutdownManager.RegisterNoErr("background-context", cancel)
	shutdownManager.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)
	shutdownManager.RegisterNoErr("notification-emitter", emitter.Close)
	if sweeper != nil {
		shutdownManager.Register("reconcile-sweep", sweeper.Shutdown)
	}
	shutdownManager.RegisterHTTPServer("metrics-server", metricsServer)
	shutdownManager.RegisterHTTPServer("http-server", httpServer)

	shutdownManager.WaitForShutdown()
}

// initLogger initializes the logger
func initLogger(cfg config.ServerConfig) *zap.Logger {
	if cfg.Environment == "production" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.LogLevel))
		logger, _ := zapCfg.Build()
		return logger
	}

	logger, _ := zap.NewDevelopment()
	return logger
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
