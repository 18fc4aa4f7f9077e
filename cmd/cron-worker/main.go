package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/internal/artworks"
	"github.com/humanpalette/palette-backend/internal/commitments"
	"github.com/humanpalette/palette-backend/internal/cron"
	"github.com/humanpalette/palette-backend/internal/ledger"
	"github.com/humanpalette/palette-backend/internal/matches"
	"github.com/humanpalette/palette-backend/internal/messaging"
	"github.com/humanpalette/palette-backend/internal/notifications"
	"github.com/humanpalette/palette-backend/internal/payments"
	"github.com/humanpalette/palette-backend/internal/profiles"
	"github.com/humanpalette/palette-backend/internal/trust"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/metrics"
	"github.com/humanpalette/palette-backend/pkg/migrate"
	"github.com/humanpalette/palette-backend/pkg/outbox"
	"github.com/humanpalette/palette-backend/pkg/pubsub"
	"github.com/humanpalette/palette-backend/pkg/redis"
	pkgstripe "github.com/humanpalette/palette-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	// The sweep survives without notifications; warnings are best effort.
	var notifier notifications.Dispatcher
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "pubsub unavailable, ghost warnings disabled")
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
	messageRepo := messaging.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

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

	commitmentSvc, err := commitments.NewService(commitments.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Matches:  matchRepo,
		Fees:     feeRepo,
		Profiles: profileRepo,
		Artworks: artworkRepo,
		Trust:    trustSvc,
		Payments: payments.NewStripeProcessor(stripeClient),
		Ledger:   ledgerSvc,
		Outbox:   outboxSvc,
		Notifier: notifier,
		Config:   cfg.Commitment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commitment service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	ghostSweep, err := cron.NewGhostSweepJob(cron.GhostSweepJobParams{
		Logger:        logg,
		DB:            dbClient,
		Matches:       matchRepo,
		Messages:      messageRepo,
		Fees:          commitmentSvc,
		Trust:         trustSvc,
		Outbox:        outboxSvc,
		Notifier:      notifier,
		Metrics:       metricsCollector,
		ThresholdDays: cfg.Sweep.ThresholdDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ghost sweep job", err)
		os.Exit(1)
	}

	feeReconcile, err := cron.NewFeeReconcileJob(cron.FeeReconcileJobParams{
		Logger:   logg,
		Fees:     feeRepo,
		Matches:  matchRepo,
		Resolver: commitmentSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fee reconcile job", err)
		os.Exit(1)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), cfg.Sweep.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(ghostSweep, feeReconcile, outboxRetention)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
