package stripewebhook

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/internal/artworks"
	"github.com/humanpalette/palette-backend/internal/commitments"
	"github.com/humanpalette/palette-backend/internal/ledger"
	"github.com/humanpalette/palette-backend/internal/notifications"
	"github.com/humanpalette/palette-backend/internal/payments"
	"github.com/humanpalette/palette-backend/internal/purchases"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/outbox"
)

const defaultPendingTransferTTL = 72 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// pendingTransferStore parks transfer references that arrive before the
// purchase they pay out has reached escrow. Stripe does not order events.
type pendingTransferStore interface {
	ParkPendingTransfer(ctx context.Context, paymentIntentID, transferID string, ttl time.Duration) error
	GetPendingTransfer(ctx context.Context, paymentIntentID string) (string, error)
	ClearPendingTransfer(ctx context.Context, paymentIntentID string) error
}

type ServiceParams struct {
	Logger             *logger.Logger
	DB                 txRunner
	Fees               commitments.Repository
	Transactions       purchases.Repository
	Artworks           artworks.Repository
	Ledger             ledger.Service
	Outbox             *outbox.Service
	PendingTransfers   pendingTransferStore
	Notifier           notifications.Dispatcher
	PendingTransferTTL time.Duration
}

// Service reconciles processor events with local state. Every handler is a
// compare-and-swap on the expected prior status, so replays and out-of-order
// deliveries converge on the same terminal state the synchronous paths write.
type Service struct {
	logg         *logger.Logger
	db           txRunner
	fees         commitments.Repository
	transactions purchases.Repository
	artworks     artworks.Repository
	ledger       ledger.Service
	outbox       *outbox.Service
	pending      pendingTransferStore
	notifier     notifications.Dispatcher
	pendingTTL   time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Fees == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commitment fee repo required")
	}
	if params.Transactions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction repo required")
	}
	if params.Artworks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "artwork repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.PendingTransfers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pending transfer store required")
	}
	ttl := params.PendingTransferTTL
	if ttl <= 0 {
		ttl = defaultPendingTransferTTL
	}
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		fees:         params.Fees,
		transactions: params.Transactions,
		artworks:     params.Artworks,
		ledger:       params.Ledger,
		outbox:       params.Outbox,
		pending:      params.PendingTransfers,
		notifier:     params.Notifier,
		pendingTTL:   ttl,
	}, nil
}

// HandleEvent routes a verified Stripe event. Events the platform did not
// originate, and references that no longer resolve, are acknowledged so
// Stripe stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.handlePaymentSucceeded(ctx, &intent)
	case stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.handlePaymentFailed(ctx, &intent)
	case stripe.EventTypeTransferCreated:
		var transfer stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &transfer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode transfer event")
		}
		return s.handleTransferCreated(ctx, &transfer)
	case stripe.EventTypeChargeDisputeCreated:
		var dispute stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode dispute event")
		}
		return s.handleDispute(ctx, &dispute)
	default:
		return nil
	}
}

// Routing keys off the metadata stamped at intent creation, never off
// amounts or descriptions.
func (s *Service) handlePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	switch intent.Metadata[payments.MetadataKindKey] {
	case payments.KindPurchase:
		return s.escrowPurchase(ctx, intent.ID)
	case payments.KindCommitmentFee:
		return s.settleFee(ctx, intent.ID, enums.CommitmentFeeStatusCaptured)
	default:
		return nil
	}
}

func (s *Service) handlePaymentFailed(ctx context.Context, intent *stripe.PaymentIntent) error {
	switch intent.Metadata[payments.MetadataKindKey] {
	case payments.KindPurchase:
		return s.refundPurchase(ctx, intent.ID)
	case payments.KindCommitmentFee:
		return s.settleFee(ctx, intent.ID, enums.CommitmentFeeStatusRefunded)
	default:
		return nil
	}
}

// settleFee converges a held fee with the outcome the processor reported. A
// fee the synchronous resolver already terminated is acknowledged untouched;
// this path only catches resolutions whose local write was lost.
func (s *Service) settleFee(ctx context.Context, paymentIntentID string, target enums.CommitmentFeeStatus) error {
	fee, err := s.fees.FindByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := s.logg.WithField(ctx, "payment_intent", paymentIntentID)
			s.logg.Warn(logCtx, "fee event references unknown payment intent, acking")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading commitment fee")
	}
	if fee.Status != enums.CommitmentFeeStatusHeld {
		return nil
	}

	ledgerType := enums.LedgerEventTypeFeeCaptured
	eventType := enums.EventFeeCaptured
	if target == enums.CommitmentFeeStatusRefunded {
		ledgerType = enums.LedgerEventTypeFeeRefunded
		eventType = enums.EventFeeRefunded
	}

	matchID := fee.MatchID
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.fees.WithTx(tx).UpdateStatusIf(ctx, fee.ID, enums.CommitmentFeeStatusHeld, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling commitment fee")
		}
		if !won {
			return nil
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			MatchID:     &matchID,
			Type:        ledgerType,
			AmountCents: fee.AmountCents,
			Metadata:    json.RawMessage(fmt.Sprintf(`{"payment_intent":%q,"source":"webhook"}`, paymentIntentID)),
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
				"status":       target.String(),
			},
		})
	})
}

// escrowPurchase confirms the buyer's funds landed and closes the listing.
func (s *Service) escrowPurchase(ctx context.Context, paymentIntentID string) error {
	transaction, err := s.loadPurchase(ctx, paymentIntentID)
	if err != nil || transaction == nil {
		return err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.transactions.WithTx(tx).UpdateStatusIf(ctx, transaction.ID, enums.TransactionStatusPending, enums.TransactionStatusEscrowed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "escrowing purchase")
		}
		if !won {
			return nil
		}
		// Losing this race is fine: the listing already closed under an
		// earlier purchase or a direct sale.
		if _, err := s.artworks.WithTx(tx).MarkSoldIf(ctx, transaction.ArtworkID, enums.ArtworkStatusAvailable); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "closing listing")
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			TransactionID: &transaction.ID,
			Type:          enums.LedgerEventTypePurchaseEscrowed,
			AmountCents:   transaction.TotalCents(),
			Metadata:      json.RawMessage(fmt.Sprintf(`{"payment_intent":%q}`, paymentIntentID)),
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseEscrowed,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   transaction.ID,
			Data: map[string]any{
				"transaction_id": transaction.ID.String(),
				"artwork_id":     transaction.ArtworkID.String(),
				"amount_cents":   transaction.TotalCents(),
			},
		})
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notifications.Notification{
			RecipientID: transaction.BuyerID,
			Type:        enums.NotificationTypePurchaseUpdate,
			Data: map[string]any{
				"transaction_id": transaction.ID.String(),
				"status":         enums.TransactionStatusEscrowed.String(),
			},
		})
	}

	// A payout transfer may have arrived while the purchase was still
	// pending; apply it now that escrow is established.
	return s.applyParkedTransfer(ctx, transaction)
}

func (s *Service) refundPurchase(ctx context.Context, paymentIntentID string) error {
	transaction, err := s.loadPurchase(ctx, paymentIntentID)
	if err != nil || transaction == nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.transactions.WithTx(tx).UpdateStatusIf(ctx, transaction.ID, enums.TransactionStatusPending, enums.TransactionStatusRefunded)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refunding purchase")
		}
		if !won {
			return nil
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			TransactionID: &transaction.ID,
			Type:          enums.LedgerEventTypePurchaseRefunded,
			AmountCents:   transaction.TotalCents(),
			Metadata:      json.RawMessage(fmt.Sprintf(`{"payment_intent":%q}`, paymentIntentID)),
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseRefunded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   transaction.ID,
			Data: map[string]any{
				"transaction_id": transaction.ID.String(),
				"amount_cents":   transaction.TotalCents(),
			},
		})
	})
}

// handleTransferCreated records the artist payout. Transfers can outrun the
// payment_intent.succeeded event, in which case the reference is parked until
// escrow catches up.
func (s *Service) handleTransferCreated(ctx context.Context, transfer *stripe.Transfer) error {
	transactionID, ok := payments.TransactionIDFromTransferGroup(transfer.TransferGroup)
	if !ok {
		return nil
	}

	transaction, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := s.logg.WithField(ctx, "transaction_id", transactionID.String())
			s.logg.Warn(logCtx, "transfer references unknown purchase, acking")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading purchase")
	}

	switch transaction.Status {
	case enums.TransactionStatusEscrowed:
		return s.releasePurchase(ctx, transaction, transfer.ID)
	case enums.TransactionStatusPending:
		if err := s.pending.ParkPendingTransfer(ctx, transaction.StripePaymentIntent, transfer.ID, s.pendingTTL); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parking transfer")
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transaction_id": transaction.ID.String(),
			"transfer_id":    transfer.ID,
		})
		s.logg.Info(logCtx, "transfer parked until purchase reaches escrow")
		return nil
	default:
		return nil
	}
}

func (s *Service) handleDispute(ctx context.Context, dispute *stripe.Dispute) error {
	if dispute.PaymentIntent == nil || dispute.PaymentIntent.ID == "" {
		return nil
	}

	transaction, err := s.loadPurchase(ctx, dispute.PaymentIntent.ID)
	if err != nil || transaction == nil {
		return err
	}

	// Disputes are a one-way trap from any live state. Only refunded
	// purchases (money already returned) stay put.
	var disputed bool
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.transactions.WithTx(tx)
		var won bool
		for _, from := range []enums.TransactionStatus{
			enums.TransactionStatusEscrowed,
			enums.TransactionStatusReleased,
			enums.TransactionStatusPending,
		} {
			var err error
			won, err = repo.UpdateStatusIf(ctx, transaction.ID, from, enums.TransactionStatusDisputed)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "disputing purchase")
			}
			if won {
				break
			}
		}
		if !won {
			return nil
		}
		disputed = true
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			TransactionID: &transaction.ID,
			Type:          enums.LedgerEventTypePurchaseDisputed,
			AmountCents:   transaction.TotalCents(),
			Metadata:      json.RawMessage(fmt.Sprintf(`{"dispute_id":%q}`, dispute.ID)),
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseDisputed,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   transaction.ID,
			Data: map[string]any{
				"transaction_id": transaction.ID.String(),
				"dispute_id":     dispute.ID,
			},
		})
	})
	if err != nil {
		return err
	}

	if disputed && s.notifier != nil {
		s.notifier.Dispatch(ctx, notifications.Notification{
			RecipientID: transaction.ArtistID,
			Type:        enums.NotificationTypeDisputeOpened,
			Data: map[string]any{
				"transaction_id": transaction.ID.String(),
			},
		})
	}
	return nil
}

func (s *Service) releasePurchase(ctx context.Context, transaction *models.Transaction, transferID string) error {
	var released bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.transactions.WithTx(tx).MarkReleasedIf(ctx, transaction.ID, transferID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing purchase")
		}
		if !won {
			return nil
		}
		released = true
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			TransactionID: &transaction.ID,
			Type:          enums.LedgerEventTypePurchaseReleased,
			AmountCents:   transaction.ArtistPayoutCents,
			Metadata:      json.RawMessage(fmt.Sprintf(`{"transfer_id":%q}`, transferID)),
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseReleased,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   transaction.ID,
			Data: map[string]any{
				"transaction_id": transaction.ID.String(),
				"transfer_id":    transferID,
				"payout_cents":   transaction.ArtistPayoutCents,
			},
		})
	})
	if err != nil {
		return err
	}
	if !released {
		return nil
	}

	// The parked reference is now persisted on the row; losing this delete
	// only leaves a key that expires on its own.
	if err := s.pending.ClearPendingTransfer(ctx, transaction.StripePaymentIntent); err != nil {
		logCtx := s.logg.WithField(ctx, "transaction_id", transaction.ID.String())
		s.logg.Error(logCtx, "failed to clear parked transfer", err)
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notifications.Notification{
			RecipientID: transaction.ArtistID,
			Type:        enums.NotificationTypePayoutReleased,
			Data: map[string]any{
				"transaction_id": transaction.ID.String(),
				"payout_cents":   transaction.ArtistPayoutCents,
			},
		})
	}
	return nil
}

func (s *Service) applyParkedTransfer(ctx context.Context, transaction *models.Transaction) error {
	transferID, err := s.pending.GetPendingTransfer(ctx, transaction.StripePaymentIntent)
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading parked transfer")
	}
	if transferID == "" {
		return nil
	}
	return s.releasePurchase(ctx, transaction, transferID)
}

// loadPurchase resolves a payment intent to its transaction. Unknown intents
// return (nil, nil) so the event gets acknowledged rather than retried.
func (s *Service) loadPurchase(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	transaction, err := s.transactions.FindByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := s.logg.WithField(ctx, "payment_intent", paymentIntentID)
			s.logg.Warn(logCtx, "purchase event references unknown payment intent, acking")
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading purchase")
	}
	return transaction, nil
}
