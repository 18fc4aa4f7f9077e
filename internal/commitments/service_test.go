package commitments

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/internal/artworks"
	"github.com/humanpalette/palette-backend/internal/ledger"
	"github.com/humanpalette/palette-backend/internal/matches"
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

type fakeProcessor struct {
	holds    []payments.AuthorizeHoldInput
	captures []string
	releases []string
	splits   []payments.SplitIntentInput
	refunds  []string

	holdErr    error
	captureErr error
	releaseErr error

	payoutReady bool
}

func (f *fakeProcessor) AuthorizeHold(ctx context.Context, input payments.AuthorizeHoldInput) (*payments.IntentResult, error) {
	if f.holdErr != nil {
		return nil, f.holdErr
	}
	f.holds = append(f.holds, input)
	return &payments.IntentResult{
		PaymentIntentID: fmt.Sprintf("pi_hold_%d", len(f.holds)),
		ClientSecret:    "cs_test_secret",
		Status:          "requires_capture",
	}, nil
}

func (f *fakeProcessor) CaptureHold(ctx context.Context, paymentIntentID string) error {
	if f.captureErr != nil {
		return f.captureErr
	}
	f.captures = append(f.captures, paymentIntentID)
	return nil
}

func (f *fakeProcessor) ReleaseHold(ctx context.Context, paymentIntentID string) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.releases = append(f.releases, paymentIntentID)
	return nil
}

func (f *fakeProcessor) CreateSplitIntent(ctx context.Context, input payments.SplitIntentInput) (*payments.IntentResult, error) {
	f.splits = append(f.splits, input)
	return &payments.IntentResult{PaymentIntentID: "pi_split", ClientSecret: "cs_split"}, nil
}

func (f *fakeProcessor) RefundPayment(ctx context.Context, paymentIntentID string) error {
	f.refunds = append(f.refunds, paymentIntentID)
	return nil
}

func (f *fakeProcessor) IsPayoutReady(ctx context.Context, accountID string) (bool, error) {
	return f.payoutReady, nil
}

type commitmentFixture struct {
	svc       Service
	client    *db.Client
	processor *fakeProcessor
	fees      Repository
	matches   matches.Repository
	ledger    ledger.Service
}

const commitmentTestDDL = `
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
CREATE TABLE IF NOT EXISTS matches (
  id TEXT PRIMARY KEY,
  artist_id TEXT NOT NULL,
  collector_id TEXT NOT NULL,
  artwork_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  decided_at DATETIME,
  ghosted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS commitment_fees (
  id TEXT PRIMARY KEY,
  match_id TEXT NOT NULL UNIQUE,
  collector_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'held',
  stripe_payment_intent TEXT NOT NULL UNIQUE,
  resolved_at DATETIME,
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

func newCommitmentFixture(t *testing.T) *commitmentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: "sqlite"}, nil)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Exec(context.Background(), commitmentTestDDL).Error; err != nil {
		t.Fatalf("creating tables: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test"})
	profileRepo := profiles.NewRepository(client.DB())

	trustSvc, err := trust.NewService(trust.ServiceParams{
		Logger:   logg,
		Profiles: func(tx *gorm.DB) trust.ProfileRepository { return profileRepo.WithTx(tx) },
		Config: config.TrustConfig{
			DefaultScore:        100,
			MultiplierThreshold: 30,
			GhostPenalty:        15,
		},
	})
	if err != nil {
		t.Fatalf("trust service: %v", err)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}

	processor := &fakeProcessor{}
	feeRepo := NewRepository(client.DB())
	matchRepo := matches.NewRepository(client.DB())

	svc, err := NewService(ServiceParams{
		Logger:   logg,
		DB:       client,
		Matches:  matchRepo,
		Fees:     feeRepo,
		Profiles: profileRepo,
		Artworks: artworks.NewRepository(client.DB()),
		Trust:    trustSvc,
		Payments: processor,
		Ledger:   ledgerSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Config:   config.CommitmentConfig{BaseFeeCents: 500},
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	return &commitmentFixture{
		svc:       svc,
		client:    client,
		processor: processor,
		fees:      feeRepo,
		matches:   matchRepo,
		ledger:    ledgerSvc,
	}
}

func (f *commitmentFixture) seedCollector(t *testing.T, trustScore int) *models.Profile {
	t.Helper()
	profile := &models.Profile{
		ID:          uuid.New(),
		DisplayName: "collector",
		TrustScore:  trustScore,
	}
	if err := f.client.DB().Create(profile).Error; err != nil {
		t.Fatalf("seeding collector: %v", err)
	}
	return profile
}

func (f *commitmentFixture) seedArtwork(t *testing.T, status enums.ArtworkStatus) *models.Artwork {
	t.Helper()
	artwork := &models.Artwork{
		ID:         uuid.New(),
		ArtistID:   uuid.New(),
		Title:      "untitled no. 4",
		PriceCents: 25000,
		Status:     status,
	}
	if err := f.client.DB().Create(artwork).Error; err != nil {
		t.Fatalf("seeding artwork: %v", err)
	}
	return artwork
}

func (f *commitmentFixture) seedHeldFee(t *testing.T) (*models.Match, *models.CommitmentFee) {
	t.Helper()
	collector := f.seedCollector(t, 100)
	artwork := f.seedArtwork(t, enums.ArtworkStatusAvailable)

	match := &models.Match{
		ID:          uuid.New(),
		ArtistID:    artwork.ArtistID,
		CollectorID: collector.ID,
		ArtworkID:   artwork.ID,
		Status:      enums.MatchStatusPending,
	}
	if err := f.matches.Create(context.Background(), match); err != nil {
		t.Fatalf("seeding match: %v", err)
	}

	fee := &models.CommitmentFee{
		ID:                  uuid.New(),
		MatchID:             match.ID,
		CollectorID:         collector.ID,
		AmountCents:         500,
		Status:              enums.CommitmentFeeStatusHeld,
		StripePaymentIntent: "pi_seeded_" + match.ID.String()[:8],
	}
	if err := f.fees.Create(context.Background(), fee); err != nil {
		t.Fatalf("seeding fee: %v", err)
	}
	return match, fee
}

func TestCreateDoublesFeeForLowTrust(t *testing.T) {
	f := newCommitmentFixture(t)
	collector := f.seedCollector(t, 25)
	artwork := f.seedArtwork(t, enums.ArtworkStatusAvailable)

	result, err := f.svc.Create(context.Background(), CreateCommitmentInput{
		CollectorID: collector.ID,
		ArtworkID:   artwork.ID,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if result.Fee.AmountCents != 1000 {
		t.Fatalf("expected doubled fee of 1000, got %d", result.Fee.AmountCents)
	}
	if len(f.processor.holds) != 1 || f.processor.holds[0].AmountCents != 1000 {
		t.Fatalf("expected a 1000 cent hold, got %+v", f.processor.holds)
	}
	if result.ClientSecret == "" {
		t.Fatal("expected a client secret for confirmation")
	}

	stored, err := f.matches.FindByID(context.Background(), result.Match.ID)
	if err != nil {
		t.Fatalf("match not persisted: %v", err)
	}
	if stored.Status != enums.MatchStatusPending {
		t.Fatalf("expected pending match, got %s", stored.Status)
	}

	held, err := f.ledger.HasMatchEvent(context.Background(), result.Match.ID, enums.LedgerEventTypeFeeHeld)
	if err != nil {
		t.Fatalf("HasMatchEvent error: %v", err)
	}
	if !held {
		t.Fatal("expected fee_held ledger event")
	}
}

func TestCreateChargesFaceValueAtThreshold(t *testing.T) {
	f := newCommitmentFixture(t)
	collector := f.seedCollector(t, 30)
	artwork := f.seedArtwork(t, enums.ArtworkStatusAvailable)

	result, err := f.svc.Create(context.Background(), CreateCommitmentInput{
		CollectorID: collector.ID,
		ArtworkID:   artwork.ID,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if result.Fee.AmountCents != 500 {
		t.Fatalf("expected base fee of 500, got %d", result.Fee.AmountCents)
	}
}

func TestCreateFailsWithoutPersistingWhenHoldFails(t *testing.T) {
	f := newCommitmentFixture(t)
	collector := f.seedCollector(t, 100)
	artwork := f.seedArtwork(t, enums.ArtworkStatusAvailable)

	f.processor.holdErr = errors.New(errors.CodeDependency, "gateway timeout")

	_, err := f.svc.Create(context.Background(), CreateCommitmentInput{
		CollectorID: collector.ID,
		ArtworkID:   artwork.ID,
	})
	if err == nil {
		t.Fatal("expected hold failure to surface")
	}

	var count int64
	if err := f.client.DB().Model(&models.Match{}).Count(&count).Error; err != nil {
		t.Fatalf("counting matches: %v", err)
	}
	if count != 0 {
		t.Fatalf("no match may exist without an authorized hold, found %d", count)
	}
}

func TestCreateRejectsSoldArtwork(t *testing.T) {
	f := newCommitmentFixture(t)
	collector := f.seedCollector(t, 100)
	artwork := f.seedArtwork(t, enums.ArtworkStatusSold)

	_, err := f.svc.Create(context.Background(), CreateCommitmentInput{
		CollectorID: collector.ID,
		ArtworkID:   artwork.ID,
	})
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeStateConflict {
		t.Fatalf("expected %s, got %v", errors.CodeStateConflict, err)
	}
}

func TestResolveRefundHappensOnce(t *testing.T) {
	f := newCommitmentFixture(t)
	match, fee := f.seedHeldFee(t)

	if err := f.svc.Resolve(context.Background(), match.ID, enums.FeeResolutionRefund); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	stored, err := f.fees.FindByMatchID(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("FindByMatchID error: %v", err)
	}
	if stored.Status != enums.CommitmentFeeStatusRefunded {
		t.Fatalf("expected refunded fee, got %s", stored.Status)
	}
	if stored.ResolvedAt == nil {
		t.Fatal("expected resolved_at to be set")
	}
	if len(f.processor.releases) != 1 || f.processor.releases[0] != fee.StripePaymentIntent {
		t.Fatalf("expected one release of %s, got %v", fee.StripePaymentIntent, f.processor.releases)
	}

	// Second resolve is an AlreadyResolved no-op: no processor call, no error.
	if err := f.svc.Resolve(context.Background(), match.ID, enums.FeeResolutionRefund); err != nil {
		t.Fatalf("duplicate Resolve should succeed, got %v", err)
	}
	if len(f.processor.releases) != 1 {
		t.Fatalf("expected no second release, got %v", f.processor.releases)
	}

	refunded, err := f.ledger.HasMatchEvent(context.Background(), match.ID, enums.LedgerEventTypeFeeRefunded)
	if err != nil {
		t.Fatalf("HasMatchEvent error: %v", err)
	}
	if !refunded {
		t.Fatal("expected fee_refunded ledger event")
	}
}

func TestResolveCaptureKeepsHeldOnProcessorFailure(t *testing.T) {
	f := newCommitmentFixture(t)
	match, _ := f.seedHeldFee(t)

	f.processor.captureErr = errors.New(errors.CodeDependency, "gateway timeout")

	err := f.svc.Resolve(context.Background(), match.ID, enums.FeeResolutionCapture)
	if err == nil {
		t.Fatal("expected processor failure to surface")
	}

	stored, findErr := f.fees.FindByMatchID(context.Background(), match.ID)
	if findErr != nil {
		t.Fatalf("FindByMatchID error: %v", findErr)
	}
	if stored.Status != enums.CommitmentFeeStatusHeld {
		t.Fatalf("fee must stay held after processor failure, got %s", stored.Status)
	}

	captured, ledgerErr := f.ledger.HasMatchEvent(context.Background(), match.ID, enums.LedgerEventTypeFeeCaptured)
	if ledgerErr != nil {
		t.Fatalf("HasMatchEvent error: %v", ledgerErr)
	}
	if captured {
		t.Fatal("no ledger event may exist without processor confirmation")
	}

	// Retry succeeds once the processor recovers.
	f.processor.captureErr = nil
	if err := f.svc.Resolve(context.Background(), match.ID, enums.FeeResolutionCapture); err != nil {
		t.Fatalf("retry Resolve error: %v", err)
	}
	stored, findErr = f.fees.FindByMatchID(context.Background(), match.ID)
	if findErr != nil {
		t.Fatalf("FindByMatchID error: %v", findErr)
	}
	if stored.Status != enums.CommitmentFeeStatusCaptured {
		t.Fatalf("expected captured fee after retry, got %s", stored.Status)
	}
}

func TestResolveUnknownMatch(t *testing.T) {
	f := newCommitmentFixture(t)

	err := f.svc.Resolve(context.Background(), uuid.New(), enums.FeeResolutionRefund)
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeNotFound {
		t.Fatalf("expected %s, got %v", errors.CodeNotFound, err)
	}
}
