// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/archive"
	"github.com/javajoker/commission-backend/internal/cache"
	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/config"
	"github.com/javajoker/commission-backend/internal/database"
	"github.com/javajoker/commission-backend/internal/events"
	"github.com/javajoker/commission-backend/internal/handlers"
	"github.com/javajoker/commission-backend/internal/i18n"
	"github.com/javajoker/commission-backend/internal/jobs"
	"github.com/javajoker/commission-backend/internal/logging"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/repository"
	"github.com/javajoker/commission-backend/internal/retry"
	"github.com/javajoker/commission-backend/internal/router"
	"github.com/javajoker/commission-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, logCloser := logging.New(cfg.Log, cfg.Environment)
	defer logCloser.Close()

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logger.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db, logger)

	// Run database migrations
	if err := database.RunMigrations(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	store := repository.NewStore(db)

	ctx := context.Background()
	checks := map[string]handlers.Check{"database": store.Ping}

	walletCache, redisClient, err := buildWalletCache(ctx, cfg, store)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize wallet cache")
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	publisher, err := events.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize event publisher")
	}
	defer publisher.Close()

	archiver, err := archive.New(cfg.AWS)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize webhook archive")
	}

	plan, err := cfg.Commission.Plan()
	if err != nil {
		logger.WithError(err).Fatal("Invalid commission plan")
	}

	gateway := buildGateway(cfg, logger)
	policy := retry.FromConfig(cfg.Retry)

	// Initialize services
	walletValidator := services.NewWalletValidator(gateway, walletCache, policy, cfg.WalletCache.TTL, cfg.WalletCache.NegativeTTL, logger)
	calculator := commission.NewCalculator(plan, store.Affiliates, logger)
	splitBuilder := services.NewSplitBuilder(plan, walletValidator, logger)
	splitSubmitter := services.NewSplitSubmitter(store.Splits, gateway, policy, publisher, logger)
	commissionService := services.NewCommissionService(services.CommissionServiceDeps{
		Payments:    store.Payments,
		Commissions: store.Commissions,
		Splits:      store.Splits,
		Calculator:  calculator,
		Builder:     splitBuilder,
		Submitter:   splitSubmitter,
		Resolver:    services.NewAffiliateWalletResolver(store.Affiliates),
		Publisher:   publisher,
		Logger:      logger,
	})
	notificationService := services.NewNotificationService(store.Notifications)
	reconciler := services.NewWebhookReconciler(services.WebhookReconcilerDeps{
		Webhooks:     store.Webhooks,
		Payments:     store.Payments,
		Affiliates:   store.Affiliates,
		Commissions:  commissionService,
		Notifier:     notificationService,
		Publisher:    publisher,
		TriggerKinds: cfg.Commission.TriggerKinds,
		Logger:       logger,
	})
	ledgerService := services.NewLedgerService(store.Commissions, store.Splits)

	// Background jobs
	if cfg.Jobs.SplitRetryEnabled {
		scheduler, err := jobs.NewScheduler(logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize job scheduler")
		}
		retryJob := jobs.NewSplitRetryJob(jobs.SplitRetryDeps{
			Splits:       store.Splits,
			Payments:     store.Payments,
			Retrier:      commissionService,
			Publisher:    publisher,
			TriggerKinds: cfg.Commission.TriggerKinds,
			Config:       cfg.Jobs,
			Logger:       logger,
		})
		if err := scheduler.Register(retryJob); err != nil {
			logger.WithError(err).Fatal("Failed to register split retry job")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	rt := router.Initialize(cfg, router.Deps{
		Ledger:      ledgerService,
		Commissions: commissionService,
		Wallets:     walletValidator,
		Reconciler:  reconciler,
		Archiver:    archiver,
		Audit:       store.Audit,
		Checks:      checks,
		Logger:      logger,
	})
	defer rt.Stop()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      rt.Engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"provider": gateway.Name(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func buildGateway(cfg *config.Config, logger logrus.FieldLogger) processor.Gateway {
	if cfg.Payment.Provider == processor.ProviderStripe {
		return processor.NewStripeGateway(cfg.Payment.Stripe, logger)
	}
	return processor.NewAsaasClient(cfg.Payment.Asaas, nil, logger)
}

// buildWalletCache returns the redis client too when one was opened.
func buildWalletCache(ctx context.Context, cfg *config.Config, store *repository.Store) (cache.WalletCache, *redis.Client, error) {
	if cfg.WalletCache.Backend != "redis" {
		return cache.NewDBWalletCache(store.Wallets), nil, nil
	}
	client, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedisWalletCache(client), client, nil
}
