package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"

	"github.com/humanpalette/palette-backend/pkg/errors"
	pkgstripe "github.com/humanpalette/palette-backend/pkg/stripe"
)

const defaultCurrency = "usd"

type stripeProcessor struct{}

// NewStripeProcessor wraps the initialized Stripe client so domain services
// can be tested against the Processor interface.
func NewStripeProcessor(api *pkgstripe.Client) Processor {
	if api == nil {
		return nil
	}
	return &stripeProcessor{}
}

func (p *stripeProcessor) AuthorizeHold(ctx context.Context, input AuthorizeHoldInput) (*IntentResult, error) {
	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(input.AmountCents),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}
	params.AddMetadata(MetadataKindKey, KindCommitmentFee)
	params.AddMetadata(MetadataMatchIDKey, input.MatchID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "authorize commitment hold")
	}
	return intentResult(pi), nil
}

func (p *stripeProcessor) CaptureHold(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if _, err := paymentintent.Capture(paymentIntentID, params); err != nil {
		return errors.Wrap(errors.CodeDependency, err, fmt.Sprintf("capture hold %s", paymentIntentID))
	}
	return nil
}

func (p *stripeProcessor) ReleaseHold(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := paymentintent.Cancel(paymentIntentID, params); err != nil {
		return errors.Wrap(errors.CodeDependency, err, fmt.Sprintf("release hold %s", paymentIntentID))
	}
	return nil
}

func (p *stripeProcessor) CreateSplitIntent(ctx context.Context, input SplitIntentInput) (*IntentResult, error) {
	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(input.AmountCents),
		Currency:             stripe.String(currency),
		ApplicationFeeAmount: stripe.Int64(input.PlatformFeeCents),
		TransferGroup:        stripe.String(TransferGroup(input.TransactionID)),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(input.ArtistAccountID),
		},
	}
	params.Context = ctx
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}
	params.AddMetadata(MetadataKindKey, KindPurchase)
	params.AddMetadata(MetadataPurchaseIDKey, input.TransactionID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "create purchase intent")
	}
	return intentResult(pi), nil
}

func (p *stripeProcessor) RefundPayment(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if _, err := refund.New(params); err != nil {
		return errors.Wrap(errors.CodeDependency, err, fmt.Sprintf("refund payment %s", paymentIntentID))
	}
	return nil
}

// IsPayoutReady reports whether the artist's connected account can receive
// charges and payouts.
func (p *stripeProcessor) IsPayoutReady(ctx context.Context, accountID string) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := account.GetByID(accountID, params)
	if err != nil {
		return false, errors.Wrap(errors.CodeDependency, err, fmt.Sprintf("fetch account %s", accountID))
	}
	return acct.ChargesEnabled && acct.PayoutsEnabled, nil
}

func intentResult(pi *stripe.PaymentIntent) *IntentResult {
	if pi == nil {
		return nil
	}
	return &IntentResult{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Status:          string(pi.Status),
	}
}
