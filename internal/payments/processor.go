package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Metadata keys stamped onto every payment intent so webhook events can be
// routed without guessing from amounts.
const (
	MetadataKindKey       = "palette_kind"
	MetadataMatchIDKey    = "palette_match_id"
	MetadataPurchaseIDKey = "palette_transaction_id"

	KindCommitmentFee = "commitment_fee"
	KindPurchase      = "purchase"

	transferGroupPrefix = "palette_txn_"
)

// TransferGroup tags a split intent so transfer events can be traced back to
// the purchase that funded them.
func TransferGroup(transactionID uuid.UUID) string {
	return transferGroupPrefix + transactionID.String()
}

// TransactionIDFromTransferGroup reverses TransferGroup. The second return is
// false for transfers the platform did not originate.
func TransactionIDFromTransferGroup(group string) (uuid.UUID, bool) {
	raw, found := strings.CutPrefix(group, transferGroupPrefix)
	if !found {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// AuthorizeHoldInput describes a manual-capture authorization for a
// commitment fee.
type AuthorizeHoldInput struct {
	MatchID     uuid.UUID
	CollectorID uuid.UUID
	CustomerID  string
	AmountCents int64
	Currency    string
}

// SplitIntentInput describes a destination-charge purchase where the platform
// fee stays behind and the remainder flows to the artist's connected account.
type SplitIntentInput struct {
	TransactionID    uuid.UUID
	BuyerID          uuid.UUID
	CustomerID       string
	ArtistAccountID  string
	AmountCents      int64
	PlatformFeeCents int64
	Currency         string
}

// IntentResult carries the processor references the caller persists.
type IntentResult struct {
	PaymentIntentID string
	ClientSecret    string
	Status          string
}

// Processor is the payment-side surface the marketplace depends on. The
// Stripe implementation is the only production one; tests swap in fakes.
type Processor interface {
	AuthorizeHold(ctx context.Context, input AuthorizeHoldInput) (*IntentResult, error)
	CaptureHold(ctx context.Context, paymentIntentID string) error
	ReleaseHold(ctx context.Context, paymentIntentID string) error
	CreateSplitIntent(ctx context.Context, input SplitIntentInput) (*IntentResult, error)
	RefundPayment(ctx context.Context, paymentIntentID string) error
	IsPayoutReady(ctx context.Context, accountID string) (bool, error)
}
