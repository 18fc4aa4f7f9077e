package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/humanpalette/palette-backend/internal/analytics"
	"github.com/humanpalette/palette-backend/pkg/bigquery"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/outbox"
	"github.com/humanpalette/palette-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	// Analytics is best-effort: the publisher keeps draining the outbox even
	// when BigQuery is unreachable at boot.
	var factWriter *analytics.Writer
	bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "bigquery unavailable, marketplace facts disabled")
	} else {
		defer func() {
			if err := bigqueryClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		factWriter, err = analytics.NewWriter(bigqueryClient, cfg.BigQuery, analytics.RetryPolicy{})
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics writer", err)
			os.Exit(1)
		}
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Analytics:  factWriter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
