package purchases

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/internal/artworks"
	"github.com/humanpalette/palette-backend/internal/ledger"
	"github.com/humanpalette/palette-backend/internal/notifications"
	"github.com/humanpalette/palette-backend/internal/payments"
	"github.com/humanpalette/palette-backend/internal/profiles"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/outbox"
)

// Service is the purchase settlement engine. It prices the sale, opens the
// split payment intent, and records the pending transaction. Everything past
// pending belongs to the webhook reconciler; this service never mutates match
// state.
type Service interface {
	Create(ctx context.Context, input CreatePurchaseInput) (*CreatePurchaseResult, error)
}

// CreatePurchaseInput describes what the buyer wants and under which rights.
// MatchID is optional; purchases can happen without an introduction.
type CreatePurchaseInput struct {
	BuyerID   uuid.UUID
	ArtworkID uuid.UUID
	MatchID   *uuid.UUID
	UseType   enums.UseType
}

// CreatePurchaseResult carries the pending transaction, its price breakdown,
// and the client secret the buyer's app confirms against.
type CreatePurchaseResult struct {
	Transaction  *models.Transaction
	Quote        PriceQuote
	ClientSecret string
}

// ServiceParams configures the purchase settlement engine.
type ServiceParams struct {
	Logger       *logger.Logger
	DB           *db.Client
	Transactions Repository
	Profiles     profiles.Repository
	Artworks     artworks.Repository
	Payments     payments.Processor
	Ledger       ledger.Service
	Outbox       *outbox.Service
	Notifier     notifications.Dispatcher
	Config       config.PricingConfig
}

type service struct {
	logg         *logger.Logger
	db           *db.Client
	transactions Repository
	profiles     profiles.Repository
	artworks     artworks.Repository
	payments     payments.Processor
	ledger       ledger.Service
	outbox       *outbox.Service
	notifier     notifications.Dispatcher
	cfg          config.PricingConfig
}

// NewService builds a purchase service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if params.Artworks == nil {
		return nil, fmt.Errorf("artwork repository required")
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
		logg:         params.Logger,
		db:           params.DB,
		transactions: params.Transactions,
		profiles:     params.Profiles,
		artworks:     params.Artworks,
		payments:     params.Payments,
		ledger:       params.Ledger,
		outbox:       params.Outbox,
		notifier:     params.Notifier,
		cfg:          params.Config,
	}, nil
}

// Create prices the artwork, opens the split intent, and records the pending
// transaction. The transaction stays pending until the processor confirms the
// charge; the artwork is only marked sold at escrow time.
func (s *service) Create(ctx context.Context, input CreatePurchaseInput) (*CreatePurchaseResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "buyer id is required")
	}
	if input.ArtworkID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "artwork id is required")
	}
	if !input.UseType.IsValid() {
		return nil, errors.New(errors.CodeValidation, "invalid use type")
	}

	buyer, err := s.profiles.FindByID(ctx, input.BuyerID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "buyer profile not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading buyer")
	}

	artwork, err := s.artworks.FindByID(ctx, input.ArtworkID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "artwork not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading artwork")
	}
	if artwork.Status != enums.ArtworkStatusAvailable {
		return nil, errors.New(errors.CodeStateConflict, "artwork is no longer available")
	}

	artist, err := s.profiles.FindByID(ctx, artwork.ArtistID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "artist profile not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading artist")
	}
	if artist.StripeAccountID == nil || *artist.StripeAccountID == "" {
		return nil, errors.New(errors.CodeOnboardingIncomplete, "artist has not configured payouts")
	}
	ready, err := s.payments.IsPayoutReady(ctx, *artist.StripeAccountID)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, errors.New(errors.CodeOnboardingIncomplete, "artist payout account is not ready")
	}

	quote, err := QuotePrice(artwork, input.UseType, s.cfg)
	if err != nil {
		return nil, err
	}

	transactionID := uuid.New()
	splitInput := payments.SplitIntentInput{
		TransactionID:    transactionID,
		BuyerID:          buyer.ID,
		ArtistAccountID:  *artist.StripeAccountID,
		AmountCents:      quote.TotalCents,
		PlatformFeeCents: quote.PlatformFeeCents,
	}
	if buyer.StripeCustomerID != nil {
		splitInput.CustomerID = *buyer.StripeCustomerID
	}

	intent, err := s.payments.CreateSplitIntent(ctx, splitInput)
	if err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		ID:                    transactionID,
		MatchID:               input.MatchID,
		ArtworkID:             artwork.ID,
		BuyerID:               buyer.ID,
		ArtistID:              artwork.ArtistID,
		UseType:               input.UseType,
		BasePriceCents:        quote.BasePriceCents,
		CommercialUpliftCents: quote.CommercialUpliftCents,
		PlatformFeeCents:      quote.PlatformFeeCents,
		ArtistPayoutCents:     quote.ArtistPayoutCents,
		Status:                enums.TransactionStatusPending,
		StripePaymentIntent:   intent.PaymentIntentID,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.transactions.WithTx(tx).Create(ctx, transaction); err != nil {
			return err
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			TransactionID: &transactionID,
			Type:          enums.LedgerEventTypePurchaseInitiated,
			AmountCents:   quote.TotalCents,
			Metadata:      json.RawMessage(fmt.Sprintf(`{"use_type":%q,"payment_intent":%q}`, input.UseType, intent.PaymentIntentID)),
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseInitiated,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   transactionID,
			Actor:         &outbox.ActorRef{ProfileID: buyer.ID, Role: enums.ProfileRoleCollector.String()},
			Data: map[string]any{
				"transaction_id":      transactionID.String(),
				"artwork_id":          artwork.ID.String(),
				"buyer_id":            buyer.ID.String(),
				"artist_id":           artwork.ArtistID.String(),
				"total_cents":         quote.TotalCents,
				"platform_fee_cents":  quote.PlatformFeeCents,
				"artist_payout_cents": quote.ArtistPayoutCents,
			},
		})
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "persisting transaction")
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notifications.Notification{
			RecipientID: artwork.ArtistID,
			Type:        enums.NotificationTypePurchaseUpdate,
			Data: map[string]any{
				"transaction_id": transactionID.String(),
				"artwork_id":     artwork.ID.String(),
				"status":         enums.TransactionStatusPending.String(),
			},
		})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"transaction_id": transactionID.String(),
		"total_cents":    quote.TotalCents,
	})
	s.logg.Info(logCtx, "purchase initiated")

	return &CreatePurchaseResult{
		Transaction:  transaction,
		Quote:        quote,
		ClientSecret: intent.ClientSecret,
	}, nil
}
