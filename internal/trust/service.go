package trust

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

// Service scales commitment fees off the collector's trust score and applies
// ghosting penalties.
type Service interface {
	MultiplierFor(score int) decimal.Decimal
	ScaledFeeCents(score int, baseFeeCents int64) int64
	PenalizeForGhosting(ctx context.Context, tx *gorm.DB, collectorID uuid.UUID) error
}

// ProfileRepository is the slice of the profiles repository the trust service needs.
type ProfileRepository interface {
	DecrementTrustScore(ctx context.Context, id uuid.UUID, penalty int) error
}

// RepositoryBinder rebinds a profile repository to a transaction.
type RepositoryBinder func(tx *gorm.DB) ProfileRepository

// ServiceParams configures the trust service.
type ServiceParams struct {
	Logger   *logger.Logger
	Profiles RepositoryBinder
	Config   config.TrustConfig
}

type service struct {
	logg     *logger.Logger
	profiles RepositoryBinder
	cfg      config.TrustConfig
}

var lowTrustMultiplier = decimal.NewFromInt(2)

// NewService builds a trust service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	return &service{
		logg:     params.Logger,
		profiles: params.Profiles,
		cfg:      params.Config,
	}, nil
}

// MultiplierFor returns the fee multiplier for the given trust score.
// Collectors below the threshold pay double; everyone else pays face value.
func (s *service) MultiplierFor(score int) decimal.Decimal {
	if score < s.cfg.MultiplierThreshold {
		return lowTrustMultiplier
	}
	return decimal.NewFromInt(1)
}

// ScaledFeeCents applies the trust multiplier to the base commitment fee.
func (s *service) ScaledFeeCents(score int, baseFeeCents int64) int64 {
	fee := decimal.NewFromInt(baseFeeCents).Mul(s.MultiplierFor(score))
	return fee.IntPart()
}

// PenalizeForGhosting deducts the configured penalty inside the caller's transaction.
func (s *service) PenalizeForGhosting(ctx context.Context, tx *gorm.DB, collectorID uuid.UUID) error {
	if collectorID == uuid.Nil {
		return fmt.Errorf("collector id is required")
	}
	repo := s.profiles(tx)
	if err := repo.DecrementTrustScore(ctx, collectorID, s.cfg.GhostPenalty); err != nil {
		return fmt.Errorf("decrement trust score: %w", err)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"collector_id": collectorID.String(),
		"penalty":      s.cfg.GhostPenalty,
	})
	s.logg.Info(logCtx, "trust score penalized for ghosting")
	return nil
}
