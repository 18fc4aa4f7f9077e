package cron

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

const (
	defaultReconcileMinAge    = time.Hour
	defaultReconcileBatchSize = 200
)

type heldFeeSource interface {
	FindHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CommitmentFee, error)
}

type matchFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
}

// FeeReconcileJobParams configures the held-fee convergence job.
type FeeReconcileJobParams struct {
	Logger    *logger.Logger
	Fees      heldFeeSource
	Matches   matchFinder
	Resolver  feeResolver
	MinAge    time.Duration
	BatchSize int
}

// NewFeeReconcileJob constructs the fee reconcile cron job.
func NewFeeReconcileJob(params FeeReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee repository required")
	}
	if params.Matches == nil {
		return nil, fmt.Errorf("match repository required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("fee resolver required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultReconcileMinAge
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}
	return &feeReconcileJob{
		logg:      params.Logger,
		fees:      params.Fees,
		matches:   params.Matches,
		resolver:  params.Resolver,
		minAge:    minAge,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

// feeReconcileJob converges fees left held after their match already closed,
// which happens when a decline or sweep committed the match transition but
// the processor call failed afterwards.
type feeReconcileJob struct {
	logg      *logger.Logger
	fees      heldFeeSource
	matches   matchFinder
	resolver  feeResolver
	minAge    time.Duration
	batchSize int
	now       func() time.Time
}

func (j *feeReconcileJob) Name() string { return "fee-reconcile" }

func (j *feeReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)

	fees, err := j.fees.FindHeldBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query held fees: %w", err)
	}

	resolved := 0
	var errs []error
	for _, fee := range fees {
		match, err := j.matches.FindByID(ctx, fee.MatchID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				errs = append(errs, fmt.Errorf("fee %s: match %s missing", fee.ID, fee.MatchID))
				continue
			}
			errs = append(errs, fmt.Errorf("fee %s: load match: %w", fee.ID, err))
			continue
		}

		var outcome enums.FeeResolution
		switch match.Status {
		case enums.MatchStatusDeclined:
			outcome = enums.FeeResolutionRefund
		case enums.MatchStatusGhosted:
			outcome = enums.FeeResolutionCapture
		default:
			// Match is still open; the fee is supposed to be held.
			continue
		}

		if err := j.resolver.Resolve(ctx, fee.MatchID, outcome); err != nil {
			errs = append(errs, fmt.Errorf("fee %s: resolve %s: %w", fee.ID, outcome, err))
			continue
		}
		resolved++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"held":     len(fees),
		"resolved": resolved,
		"errored":  len(errs),
	})
	j.logg.Info(logCtx, "fee reconcile complete")

	return multierr.Combine(errs...)
}
