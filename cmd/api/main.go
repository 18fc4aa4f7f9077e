package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/api/controllers"
	"github.com/humanpalette/palette-backend/api/routes"
	"github.com/humanpalette/palette-backend/internal/artworks"
	"github.com/humanpalette/palette-backend/internal/commitments"
	"github.com/humanpalette/palette-backend/internal/cron"
	"github.com/humanpalette/palette-backend/internal/ledger"
	"github.com/humanpalette/palette-backend/internal/matches"
	"github.com/humanpalette/palette-backend/internal/messaging"
	"github.com/humanpalette/palette-backend/internal/notifications"
	"github.com/humanpalette/palette-backend/internal/payments"
	"github.com/humanpalette/palette-backend/internal/profiles"
	"github.com/humanpalette/palette-backend/internal/purchases"
	"github.com/humanpalette/palette-backend/internal/trust"
	stripewebhook "github.com/humanpalette/palette-backend/internal/webhooks/stripe"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/migrate"
	"github.com/humanpalette/palette-backend/pkg/outbox"
	"github.com/humanpalette/palette-backend/pkg/pubsub"
	"github.com/humanpalette/palette-backend/pkg/redis"
	pkgstripe "github.com/humanpalette/palette-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	var notifier notifications.Dispatcher
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "pubsub unavailable, notifications disabled")
		notifier = notifications.NewDispatcher(logg, nil)
	} else {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifier = notifications.NewDispatcher(logg, pubsubClient.NotificationPublisher())
	}

	profileRepo := profiles.NewRepository(dbClient.DB())
	matchRepo := matches.NewRepository(dbClient.DB())
	feeRepo := commitments.NewRepository(dbClient.DB())
	artworkRepo := artworks.NewRepository(dbClient.DB())
	transactionRepo := purchases.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	trustSvc, err := trust.NewService(trust.ServiceParams{
		Logger:   logg,
		Profiles: func(tx *gorm.DB) trust.ProfileRepository { return profileRepo.WithTx(tx) },
		Config:   cfg.Trust,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create trust service", err)
		os.Exit(1)
	}

	processor := payments.NewStripeProcessor(stripeClient)

	commitmentSvc, err := commitments.NewService(commitments.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Matches:  matchRepo,
		Fees:     feeRepo,
		Profiles: profileRepo,
		Artworks: artworkRepo,
		Trust:    trustSvc,
		Payments: processor,
		Ledger:   ledgerSvc,
		Outbox:   outboxSvc,
		Notifier: notifier,
		Config:   cfg.Commitment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commitment service", err)
		os.Exit(1)
	}

	matchSvc, err := matches.NewService(matches.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Matches:  matchRepo,
		Fees:     commitmentSvc,
		Outbox:   outboxSvc,
		Notifier: notifier,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create match service", err)
		os.Exit(1)
	}

	purchaseSvc, err := purchases.NewService(purchases.ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Transactions: transactionRepo,
		Profiles:     profileRepo,
		Artworks:     artworkRepo,
		Payments:     processor,
		Ledger:       ledgerSvc,
		Outbox:       outboxSvc,
		Notifier:     notifier,
		Config:       cfg.Pricing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Logger:             logg,
		DB:                 dbClient,
		Fees:               feeRepo,
		Transactions:       transactionRepo,
		Artworks:           artworkRepo,
		Ledger:             ledgerSvc,
		Outbox:             outboxSvc,
		PendingTransfers:   redisClient,
		Notifier:           notifier,
		PendingTransferTTL: cfg.Eventing.PendingTransferTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	// Manual sweep trigger for non-prod; the cron worker owns the schedule.
	var ghostSweeper controllers.GhostSweeper
	if !cfg.App.IsProd() {
		job, err := cron.NewGhostSweepJob(cron.GhostSweepJobParams{
			Logger:        logg,
			DB:            dbClient,
			Matches:       matchRepo,
			Messages:      messaging.NewRepository(dbClient.DB()),
			Fees:          commitmentSvc,
			Trust:         trustSvc,
			Outbox:        outboxSvc,
			Notifier:      notifier,
			ThresholdDays: cfg.Sweep.ThresholdDays,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create ghost sweep job", err)
			os.Exit(1)
		}
		ghostSweeper = job
	}

	healthDeps := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}
	if pubsubClient != nil {
		healthDeps["pubsub"] = pubsubClient
	}

	router := routes.NewRouter(
		cfg,
		logg,
		healthDeps,
		redisClient,
		matchSvc,
		commitmentSvc,
		purchaseSvc,
		stripeClient,
		webhookSvc,
		webhookGuard,
		ghostSweeper,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}
