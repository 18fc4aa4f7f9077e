package commitments

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/internal/artworks"
	"github.com/humanpalette/palette-backend/internal/ledger"
	"github.com/humanpalette/palette-backend/internal/matches"
	"github.com/humanpalette/palette-backend/internal/notifications"
	"github.com/humanpalette/palette-backend/internal/payments"
	"github.com/humanpalette/palette-backend/internal/profiles"
	"github.com/humanpalette/palette-backend/internal/trust"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/outbox"
)

// Service is the commitment fee manager. It opens matches by authorizing the
// collector's hold and terminates fees exactly once, no matter how many
// callers race to resolve them.
type Service interface {
	Create(ctx context.Context, input CreateCommitmentInput) (*CreateCommitmentResult, error)
	Resolve(ctx context.Context, matchID uuid.UUID, outcome enums.FeeResolution) error
}

// CreateCommitmentInput identifies who is paying to meet whom.
type CreateCommitmentInput struct {
	CollectorID uuid.UUID
	ArtworkID   uuid.UUID
}

// CreateCommitmentResult carries the new match and the client secret the
// collector's app needs to confirm the hold.
type CreateCommitmentResult struct {
	Match        *models.Match
	Fee          *models.CommitmentFee
	ClientSecret string
}

// ServiceParams configures the commitment fee manager.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       *db.Client
	Matches  matches.Repository
	Fees     Repository
	Profiles profiles.Repository
	Artworks artworks.Repository
	Trust    trust.Service
	Payments payments.Processor
	Ledger   ledger.Service
	Outbox   *outbox.Service
	Notifier notifications.Dispatcher
	Config   config.CommitmentConfig
}

type service struct {
	logg     *logger.Logger
	db       *db.Client
	matches  matches.Repository
	fees     Repository
	profiles profiles.Repository
	artworks artworks.Repository
	trust    trust.Service
	payments payments.Processor
	ledger   ledger.Service
	outbox   *outbox.Service
	notifier notifications.Dispatcher
	cfg      config.CommitmentConfig
}

// NewService builds a commitment fee manager.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Matches == nil {
		return nil, fmt.Errorf("match repository required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee repository required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if params.Artworks == nil {
		return nil, fmt.Errorf("artwork repository required")
	}
	if params.Trust == nil {
		return nil, fmt.Errorf("trust service required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		logg:     params.Logger,
		db:       params.DB,
		matches:  params.Matches,
		fees:     params.Fees,
		profiles: params.Profiles,
		artworks: params.Artworks,
		trust:    params.Trust,
		payments: params.Payments,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		cfg:      params.Config,
	}, nil
}

// Create authorizes the collector's hold and persists the match and fee as
// one unit. If the hold cannot be authorized no match exists; if the write
// fails after authorization the hold is released best effort.
func (s *service) Create(ctx context.Context, input CreateCommitmentInput) (*CreateCommitmentResult, error) {
	if input.CollectorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "collector id is required")
	}
	if input.ArtworkID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "artwork id is required")
	}

	collector, err := s.profiles.FindByID(ctx, input.CollectorID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "collector profile not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading collector")
	}

	artwork, err := s.artworks.FindByID(ctx, input.ArtworkID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "artwork not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading artwork")
	}
	if artwork.ArtistID == collector.ID {
		return nil, errors.New(errors.CodeValidation, "collectors cannot request their own artwork")
	}
	if artwork.Status != enums.ArtworkStatusAvailable {
		return nil, errors.New(errors.CodeStateConflict, "artwork is no longer available")
	}

	amountCents := s.trust.ScaledFeeCents(collector.TrustScore, s.cfg.BaseFeeCents)
	matchID := uuid.New()

	holdInput := payments.AuthorizeHoldInput{
		MatchID:     matchID,
		CollectorID: collector.ID,
		AmountCents: amountCents,
	}
	if collector.StripeCustomerID != nil {
		holdInput.CustomerID = *collector.StripeCustomerID
	}

	intent, err := s.payments.AuthorizeHold(ctx, holdInput)
	if err != nil {
		return nil, err
	}

	match := &models.Match{
		ID:          matchID,
		ArtistID:    artwork.ArtistID,
		CollectorID: collector.ID,
		ArtworkID:   artwork.ID,
		Status:      enums.MatchStatusPending,
	}
	fee := &models.CommitmentFee{
		ID:                  uuid.New(),
		MatchID:             matchID,
		CollectorID:         collector.ID,
		AmountCents:         amountCents,
		Status:              enums.CommitmentFeeStatusHeld,
		StripePaymentIntent: intent.PaymentIntentID,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.matches.WithTx(tx).Create(ctx, match); err != nil {
			return err
		}
		if err := s.fees.WithTx(tx).Create(ctx, fee); err != nil {
			return err
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			MatchID:     &matchID,
			Type:        enums.LedgerEventTypeFeeHeld,
			AmountCents: amountCents,
			Metadata:    json.RawMessage(fmt.Sprintf(`{"payment_intent":%q}`, intent.PaymentIntentID)),
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMatchCreated,
			AggregateType: enums.AggregateMatch,
			AggregateID:   matchID,
			Actor:         &outbox.ActorRef{ProfileID: collector.ID, Role: enums.ProfileRoleCollector.String()},
			Data: map[string]any{
				"match_id":     matchID.String(),
				"artist_id":    artwork.ArtistID.String(),
				"collector_id": collector.ID.String(),
				"artwork_id":   artwork.ID.String(),
				"fee_cents":    amountCents,
			},
		})
	})
	if err != nil {
		s.releaseOrphanedHold(ctx, intent.PaymentIntentID)
		return nil, errors.Wrap(errors.CodeInternal, err, "persisting match and fee")
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notifications.Notification{
			RecipientID: artwork.ArtistID,
			Type:        enums.NotificationTypeMatchRequest,
			Data: map[string]any{
				"match_id":   matchID.String(),
				"artwork_id": artwork.ID.String(),
			},
		})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"match_id":     matchID.String(),
		"amount_cents": amountCents,
	})
	s.logg.Info(logCtx, "commitment fee authorized")

	return &CreateCommitmentResult{
		Match:        match,
		Fee:          fee,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// Resolve terminates a held fee. A fee that is already terminal is treated
// as resolved and returns success, so a user decline racing the ghost sweep
// settles on whichever terminal state was written first. The processor call
// happens before the terminal status is committed: on processor failure the
// fee stays held and the caller retries.
func (s *service) Resolve(ctx context.Context, matchID uuid.UUID, outcome enums.FeeResolution) error {
	if matchID == uuid.Nil {
		return errors.New(errors.CodeValidation, "match id is required")
	}
	if !outcome.IsValid() {
		return errors.New(errors.CodeValidation, "invalid fee resolution")
	}

	fee, err := s.fees.FindByMatchID(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "commitment fee not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "loading commitment fee")
	}

	if fee.Status != enums.CommitmentFeeStatusHeld {
		logCtx := s.logg.WithMatchID(ctx, matchID.String())
		s.logg.Info(logCtx, "commitment fee already resolved")
		return nil
	}

	var target enums.CommitmentFeeStatus
	var ledgerType enums.LedgerEventType
	var eventType enums.OutboxEventType
	switch outcome {
	case enums.FeeResolutionCapture:
		target = enums.CommitmentFeeStatusCaptured
		ledgerType = enums.LedgerEventTypeFeeCaptured
		eventType = enums.EventFeeCaptured
		if err := s.payments.CaptureHold(ctx, fee.StripePaymentIntent); err != nil {
			return err
		}
	case enums.FeeResolutionRefund:
		target = enums.CommitmentFeeStatusRefunded
		ledgerType = enums.LedgerEventTypeFeeRefunded
		eventType = enums.EventFeeRefunded
		if err := s.payments.ReleaseHold(ctx, fee.StripePaymentIntent); err != nil {
			return err
		}
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.fees.WithTx(tx).UpdateStatusIf(ctx, fee.ID, enums.CommitmentFeeStatusHeld, target)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "resolving commitment fee")
		}
		if !won {
			// A concurrent resolver committed first; the processor side is
			// idempotent for the same terminal outcome.
			return nil
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			MatchID:     &matchID,
			Type:        ledgerType,
			AmountCents: fee.AmountCents,
			Metadata:    json.RawMessage(fmt.Sprintf(`{"resolution":%q}`, outcome)),
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateCommitmentFee,
			AggregateID:   fee.ID,
			Data: map[string]any{
				"match_id":     matchID.String(),
				"fee_id":       fee.ID.String(),
				"amount_cents": fee.AmountCents,
				"resolution":   outcome.String(),
			},
		})
	})
}

// releaseOrphanedHold cancels an authorization whose match never got
// persisted. Failure here only costs the collector a pending authorization
// that expires on its own, so it is logged and dropped.
func (s *service) releaseOrphanedHold(ctx context.Context, paymentIntentID string) {
	if err := s.payments.ReleaseHold(ctx, paymentIntentID); err != nil {
		logCtx := s.logg.WithField(ctx, "payment_intent", paymentIntentID)
		s.logg.Error(logCtx, "failed to release orphaned hold", err)
	}
}
