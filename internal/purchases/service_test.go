package purchases

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/internal/artworks"
	"github.com/humanpalette/palette-backend/internal/ledger"
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

type fakeProcessor struct {
	splits      []payments.SplitIntentInput
	splitErr    error
	payoutReady bool
	payoutErr   error
}

func (f *fakeProcessor) AuthorizeHold(ctx context.Context, input payments.AuthorizeHoldInput) (*payments.IntentResult, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeProcessor) CaptureHold(ctx context.Context, paymentIntentID string) error {
	return fmt.Errorf("not used")
}

func (f *fakeProcessor) ReleaseHold(ctx context.Context, paymentIntentID string) error {
	return fmt.Errorf("not used")
}

func (f *fakeProcessor) CreateSplitIntent(ctx context.Context, input payments.SplitIntentInput) (*payments.IntentResult, error) {
	if f.splitErr != nil {
		return nil, f.splitErr
	}
	f.splits = append(f.splits, input)
	return &payments.IntentResult{
		PaymentIntentID: fmt.Sprintf("pi_split_%d", len(f.splits)),
		ClientSecret:    "cs_split_secret",
		Status:          "requires_payment_method",
	}, nil
}

func (f *fakeProcessor) RefundPayment(ctx context.Context, paymentIntentID string) error {
	return fmt.Errorf("not used")
}

func (f *fakeProcessor) IsPayoutReady(ctx context.Context, accountID string) (bool, error) {
	if f.payoutErr != nil {
		return false, f.payoutErr
	}
	return f.payoutReady, nil
}

type purchaseFixture struct {
	svc          Service
	client       *db.Client
	processor    *fakeProcessor
	transactions Repository
	ledger       ledger.Service
}

const purchaseTestDDL = `
CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  trust_score INTEGER NOT NULL DEFAULT 100,
  stripe_customer_id TEXT,
  stripe_account_id TEXT,
  last_active_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS artworks (
  id TEXT PRIMARY KEY,
  artist_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  commercial_price_cents INTEGER,
  allows_commercial INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'available',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  match_id TEXT,
  artwork_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  artist_id TEXT NOT NULL,
  use_type TEXT NOT NULL,
  base_price_cents INTEGER NOT NULL,
  commercial_uplift_cents INTEGER NOT NULL DEFAULT 0,
  platform_fee_cents INTEGER NOT NULL,
  artist_payout_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  stripe_payment_intent TEXT NOT NULL UNIQUE,
  stripe_transfer_id TEXT,
  escrowed_at DATETIME,
  released_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS ledger_events (
  id TEXT PRIMARY KEY,
  match_id TEXT,
  transaction_id TEXT,
  type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  metadata TEXT,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  UNIQUE (event_type, aggregate_id)
);`

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: "sqlite"}, nil)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Exec(context.Background(), purchaseTestDDL).Error; err != nil {
		t.Fatalf("creating tables: %v", err)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}

	processor := &fakeProcessor{payoutReady: true}
	transactionRepo := NewRepository(client.DB())

	svc, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{ServiceName: "test"}),
		DB:           client,
		Transactions: transactionRepo,
		Profiles:     profiles.NewRepository(client.DB()),
		Artworks:     artworks.NewRepository(client.DB()),
		Payments:     processor,
		Ledger:       ledgerSvc,
		Outbox:       outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Config: config.PricingConfig{
			PlatformFeeRate:      0.075,
			CommercialMultiplier: 1.25,
		},
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	return &purchaseFixture{
		svc:          svc,
		client:       client,
		processor:    processor,
		transactions: transactionRepo,
		ledger:       ledgerSvc,
	}
}

func (f *purchaseFixture) seedBuyer(t *testing.T) *models.Profile {
	t.Helper()
	customerID := "cus_buyer"
	buyer := &models.Profile{
		ID:               uuid.New(),
		DisplayName:      "buyer",
		TrustScore:       100,
		StripeCustomerID: &customerID,
	}
	if err := f.client.DB().Create(buyer).Error; err != nil {
		t.Fatalf("seeding buyer: %v", err)
	}
	return buyer
}

func (f *purchaseFixture) seedArtist(t *testing.T, accountID *string) *models.Profile {
	t.Helper()
	artist := &models.Profile{
		ID:              uuid.New(),
		DisplayName:     "artist",
		TrustScore:      100,
		StripeAccountID: accountID,
	}
	if err := f.client.DB().Create(artist).Error; err != nil {
		t.Fatalf("seeding artist: %v", err)
	}
	return artist
}

func (f *purchaseFixture) seedArtwork(t *testing.T, artistID uuid.UUID, allowsCommercial bool) *models.Artwork {
	t.Helper()
	artwork := &models.Artwork{
		ID:               uuid.New(),
		ArtistID:         artistID,
		Title:            "study in blue",
		PriceCents:       25000,
		AllowsCommercial: allowsCommercial,
		Status:           enums.ArtworkStatusAvailable,
	}
	if err := f.client.DB().Create(artwork).Error; err != nil {
		t.Fatalf("seeding artwork: %v", err)
	}
	return artwork
}

func TestCreateCommercialPurchase(t *testing.T) {
	f := newPurchaseFixture(t)
	buyer := f.seedBuyer(t)
	accountID := "acct_artist"
	artist := f.seedArtist(t, &accountID)
	artwork := f.seedArtwork(t, artist.ID, true)

	result, err := f.svc.Create(context.Background(), CreatePurchaseInput{
		BuyerID:   buyer.ID,
		ArtworkID: artwork.ID,
		UseType:   enums.UseTypeCommercial,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if result.Quote.TotalCents != 31250 {
		t.Fatalf("expected total of 31250, got %d", result.Quote.TotalCents)
	}
	if result.Quote.PlatformFeeCents != 2343 || result.Quote.ArtistPayoutCents != 28907 {
		t.Fatalf("unexpected split: %+v", result.Quote)
	}
	if result.ClientSecret == "" {
		t.Fatal("expected a client secret for confirmation")
	}

	if len(f.processor.splits) != 1 {
		t.Fatalf("expected one split intent, got %d", len(f.processor.splits))
	}
	split := f.processor.splits[0]
	if split.AmountCents != 31250 || split.PlatformFeeCents != 2343 {
		t.Fatalf("split intent amounts wrong: %+v", split)
	}
	if split.ArtistAccountID != accountID {
		t.Fatalf("expected payout destination %s, got %s", accountID, split.ArtistAccountID)
	}

	stored, err := f.transactions.FindByID(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("transaction not persisted: %v", err)
	}
	if stored.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending transaction, got %s", stored.Status)
	}
	if stored.PlatformFeeCents+stored.ArtistPayoutCents != stored.TotalCents() {
		t.Fatalf("persisted split must add up: %+v", stored)
	}

	initiated, err := f.ledger.HasTransactionEvent(context.Background(), stored.ID, enums.LedgerEventTypePurchaseInitiated)
	if err != nil {
		t.Fatalf("HasTransactionEvent error: %v", err)
	}
	if !initiated {
		t.Fatal("expected purchase_initiated ledger event")
	}
}

func TestCreateFailsWhenArtistNotOnboarded(t *testing.T) {
	f := newPurchaseFixture(t)
	buyer := f.seedBuyer(t)
	artist := f.seedArtist(t, nil)
	artwork := f.seedArtwork(t, artist.ID, false)

	_, err := f.svc.Create(context.Background(), CreatePurchaseInput{
		BuyerID:   buyer.ID,
		ArtworkID: artwork.ID,
		UseType:   enums.UseTypePersonal,
	})
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeOnboardingIncomplete {
		t.Fatalf("expected %s, got %v", errors.CodeOnboardingIncomplete, err)
	}
}

func TestCreateFailsWhenPayoutsNotReady(t *testing.T) {
	f := newPurchaseFixture(t)
	buyer := f.seedBuyer(t)
	accountID := "acct_pending"
	artist := f.seedArtist(t, &accountID)
	artwork := f.seedArtwork(t, artist.ID, false)

	f.processor.payoutReady = false

	_, err := f.svc.Create(context.Background(), CreatePurchaseInput{
		BuyerID:   buyer.ID,
		ArtworkID: artwork.ID,
		UseType:   enums.UseTypePersonal,
	})
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeOnboardingIncomplete {
		t.Fatalf("expected %s, got %v", errors.CodeOnboardingIncomplete, err)
	}
	if len(f.processor.splits) != 0 {
		t.Fatal("no split intent may be opened before onboarding completes")
	}
}

func TestCreateRejectsDisallowedCommercialUse(t *testing.T) {
	f := newPurchaseFixture(t)
	buyer := f.seedBuyer(t)
	accountID := "acct_artist"
	artist := f.seedArtist(t, &accountID)
	artwork := f.seedArtwork(t, artist.ID, false)

	_, err := f.svc.Create(context.Background(), CreatePurchaseInput{
		BuyerID:   buyer.ID,
		ArtworkID: artwork.ID,
		UseType:   enums.UseTypeCommercial,
	})
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeCommercialUse {
		t.Fatalf("expected %s, got %v", errors.CodeCommercialUse, err)
	}
}

func TestCreateRejectsSoldArtwork(t *testing.T) {
	f := newPurchaseFixture(t)
	buyer := f.seedBuyer(t)
	accountID := "acct_artist"
	artist := f.seedArtist(t, &accountID)
	artwork := f.seedArtwork(t, artist.ID, false)

	if err := f.client.DB().Model(&models.Artwork{}).
		Where("id = ?", artwork.ID).
		Update("status", enums.ArtworkStatusSold).Error; err != nil {
		t.Fatalf("marking artwork sold: %v", err)
	}

	_, err := f.svc.Create(context.Background(), CreatePurchaseInput{
		BuyerID:   buyer.ID,
		ArtworkID: artwork.ID,
		UseType:   enums.UseTypePersonal,
	})
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeStateConflict {
		t.Fatalf("expected %s, got %v", errors.CodeStateConflict, err)
	}
}
