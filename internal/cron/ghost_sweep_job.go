package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/internal/matches"
	"github.com/humanpalette/palette-backend/internal/notifications"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/metrics"
	"github.com/humanpalette/palette-backend/pkg/outbox"
)

const (
	defaultSweepThresholdDays = 7
	defaultSweepBatchSize     = 200
)

// SweepResult summarizes one pass of the ghost sweep.
type SweepResult struct {
	Checked   int `json:"checked"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type messageActivity interface {
	CountSince(ctx context.Context, matchID uuid.UUID, since time.Time) (int64, error)
}

type feeResolver interface {
	Resolve(ctx context.Context, matchID uuid.UUID, outcome enums.FeeResolution) error
}

type trustPenalizer interface {
	PenalizeForGhosting(ctx context.Context, tx *gorm.DB, collectorID uuid.UUID) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// GhostSweepJobParams configures the abandoned-match sweep.
type GhostSweepJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Matches       matches.Repository
	Messages      messageActivity
	Fees          feeResolver
	Trust         trustPenalizer
	Outbox        outboxEmitter
	Notifier      notifications.Dispatcher
	Metrics       *metrics.CronJobMetrics
	ThresholdDays int
	BatchSize     int
}

// NewGhostSweepJob constructs the ghost sweep cron job.
func NewGhostSweepJob(params GhostSweepJobParams) (*GhostSweepJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Matches == nil {
		return nil, fmt.Errorf("match repository required")
	}
	if params.Messages == nil {
		return nil, fmt.Errorf("message repository required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee resolver required")
	}
	if params.Trust == nil {
		return nil, fmt.Errorf("trust service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	threshold := params.ThresholdDays
	if threshold <= 0 {
		threshold = defaultSweepThresholdDays
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &GhostSweepJob{
		logg:      params.Logger,
		db:        params.DB,
		matches:   params.Matches,
		messages:  params.Messages,
		fees:      params.Fees,
		trust:     params.Trust,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		threshold: threshold,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

// GhostSweepJob finds matches whose conversations went silent, forfeits the
// collector's commitment fee, and applies the trust penalty. Each candidate
// is handled independently so one bad item never stalls the batch.
type GhostSweepJob struct {
	logg      *logger.Logger
	db        txRunner
	matches   matches.Repository
	messages  messageActivity
	fees      feeResolver
	trust     trustPenalizer
	outbox    outboxEmitter
	notifier  notifications.Dispatcher
	metrics   *metrics.CronJobMetrics
	threshold int
	batchSize int
	now       func() time.Time
}

func (j *GhostSweepJob) Name() string { return "ghost-sweep" }

func (j *GhostSweepJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep performs one pass and reports what it did. Also callable outside the
// schedule, e.g. from an admin endpoint.
func (j *GhostSweepJob) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := j.now().UTC().Add(-time.Duration(j.threshold) * 24 * time.Hour)

	candidates, err := j.matches.FindStaleBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("query stale matches: %w", err)
	}

	result := SweepResult{Checked: len(candidates)}
	var errs []error
	for _, match := range candidates {
		processed, err := j.sweepOne(ctx, match, cutoff)
		switch {
		case err != nil:
			result.Errored++
			errs = append(errs, fmt.Errorf("match %s: %w", match.ID, err))
		case processed:
			result.Processed++
		default:
			result.Skipped++
		}
	}

	j.recordItems(result)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"checked":   result.Checked,
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"errored":   result.Errored,
	})
	j.logg.Info(logCtx, "ghost sweep complete")

	return result, multierr.Combine(errs...)
}

func (j *GhostSweepJob) sweepOne(ctx context.Context, match models.Match, cutoff time.Time) (bool, error) {
	recent, err := j.messages.CountSince(ctx, match.ID, cutoff)
	if err != nil {
		return false, fmt.Errorf("count messages: %w", err)
	}
	if recent > 0 {
		return false, nil
	}

	// Forfeit the hold before flipping the match; the resolver is a no-op
	// when the fee already terminated.
	if err := j.fees.Resolve(ctx, match.ID, enums.FeeResolutionCapture); err != nil {
		return false, fmt.Errorf("capture fee: %w", err)
	}

	ghosted := false
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := j.matches.WithTx(tx).MarkGhosted(ctx, match.ID)
		if err != nil {
			return fmt.Errorf("mark ghosted: %w", err)
		}
		if !won {
			// Someone declined or a previous sweep already ghosted it; the
			// penalty must not apply twice.
			return nil
		}
		ghosted = true
		if err := j.trust.PenalizeForGhosting(ctx, tx, match.CollectorID); err != nil {
			return fmt.Errorf("apply trust penalty: %w", err)
		}
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMatchGhosted,
			AggregateType: enums.AggregateMatch,
			AggregateID:   match.ID,
			Data: map[string]any{
				"match_id":     match.ID.String(),
				"collector_id": match.CollectorID.String(),
				"artist_id":    match.ArtistID.String(),
			},
		})
	})
	if err != nil {
		return false, err
	}

	if ghosted && j.notifier != nil {
		j.notifier.Dispatch(ctx, notifications.Notification{
			RecipientID: match.CollectorID,
			Type:        enums.NotificationTypeTrustAdjustment,
			Data: map[string]any{
				"match_id": match.ID.String(),
				"reason":   "ghosted",
			},
		})
	}

	return ghosted, nil
}

func (j *GhostSweepJob) recordItems(result SweepResult) {
	if j.metrics == nil {
		return
	}
	j.metrics.AddItems(j.Name(), "processed", result.Processed)
	j.metrics.AddItems(j.Name(), "skipped", result.Skipped)
	j.metrics.AddItems(j.Name(), "errored", result.Errored)
}
