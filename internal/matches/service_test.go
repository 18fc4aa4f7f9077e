package matches

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/outbox"
)

type fakeFeeResolver struct {
	calls []enums.FeeResolution
	err   error
}

func (f *fakeFeeResolver) Resolve(ctx context.Context, matchID uuid.UUID, outcome enums.FeeResolution) error {
	f.calls = append(f.calls, outcome)
	return f.err
}

type matchServiceFixture struct {
	svc      Service
	client   *db.Client
	repo     Repository
	resolver *fakeFeeResolver
}

func newMatchServiceFixture(t *testing.T) *matchServiceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: "sqlite"}, nil)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ddl := `
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
	if err := client.Exec(context.Background(), ddl).Error; err != nil {
		t.Fatalf("creating tables: %v", err)
	}

	repo := NewRepository(client.DB())
	resolver := &fakeFeeResolver{}
	svc, err := NewService(ServiceParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		DB:      client,
		Matches: repo,
		Fees:    resolver,
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	return &matchServiceFixture{svc: svc, client: client, repo: repo, resolver: resolver}
}

func (f *matchServiceFixture) seedMatch(t *testing.T, status enums.MatchStatus) *models.Match {
	t.Helper()
	match := &models.Match{
		ID:          uuid.New(),
		ArtistID:    uuid.New(),
		CollectorID: uuid.New(),
		ArtworkID:   uuid.New(),
		Status:      status,
		CreatedAt:   time.Now(),
	}
	if err := f.repo.Create(context.Background(), match); err != nil {
		t.Fatalf("seeding match: %v", err)
	}
	return match
}

func (f *matchServiceFixture) countOutboxEvents(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	var count int64
	err := f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("counting outbox events: %v", err)
	}
	return count
}

func TestAcceptActivatesPendingMatch(t *testing.T) {
	f := newMatchServiceFixture(t)
	match := f.seedMatch(t, enums.MatchStatusPending)

	got, err := f.svc.Accept(context.Background(), match.ID, match.ArtistID)
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if got.Status != enums.MatchStatusActive {
		t.Fatalf("expected active match, got %s", got.Status)
	}
	if got.DecidedAt == nil {
		t.Fatal("expected decided_at to be set")
	}
	if len(f.resolver.calls) != 0 {
		t.Fatalf("accept must not touch the fee, got %v", f.resolver.calls)
	}
	if n := f.countOutboxEvents(t, enums.EventMatchAccepted, match.ID); n != 1 {
		t.Fatalf("expected one match_accepted event, got %d", n)
	}
}

func TestAcceptRejectsNonPendingMatch(t *testing.T) {
	f := newMatchServiceFixture(t)
	match := f.seedMatch(t, enums.MatchStatusActive)

	_, err := f.svc.Accept(context.Background(), match.ID, match.ArtistID)
	if err == nil {
		t.Fatal("expected state conflict")
	}
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeStateConflict {
		t.Fatalf("expected %s, got %v", errors.CodeStateConflict, err)
	}
}

func TestAcceptRejectsWrongArtist(t *testing.T) {
	f := newMatchServiceFixture(t)
	match := f.seedMatch(t, enums.MatchStatusPending)

	_, err := f.svc.Accept(context.Background(), match.ID, uuid.New())
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeForbidden {
		t.Fatalf("expected %s, got %v", errors.CodeForbidden, err)
	}

	stored, findErr := f.repo.FindByID(context.Background(), match.ID)
	if findErr != nil {
		t.Fatalf("FindByID error: %v", findErr)
	}
	if stored.Status != enums.MatchStatusPending {
		t.Fatalf("match must stay pending, got %s", stored.Status)
	}
}

func TestDeclineRefundsFee(t *testing.T) {
	f := newMatchServiceFixture(t)
	match := f.seedMatch(t, enums.MatchStatusPending)

	got, err := f.svc.Decline(context.Background(), match.ID, match.ArtistID)
	if err != nil {
		t.Fatalf("Decline error: %v", err)
	}
	if got.Status != enums.MatchStatusDeclined {
		t.Fatalf("expected declined match, got %s", got.Status)
	}
	if len(f.resolver.calls) != 1 || f.resolver.calls[0] != enums.FeeResolutionRefund {
		t.Fatalf("expected a single refund resolution, got %v", f.resolver.calls)
	}
	if n := f.countOutboxEvents(t, enums.EventMatchDeclined, match.ID); n != 1 {
		t.Fatalf("expected one match_declined event, got %d", n)
	}
}

func TestDeclineTwiceIsIdempotent(t *testing.T) {
	f := newMatchServiceFixture(t)
	match := f.seedMatch(t, enums.MatchStatusPending)

	if _, err := f.svc.Decline(context.Background(), match.ID, match.ArtistID); err != nil {
		t.Fatalf("first decline error: %v", err)
	}
	if _, err := f.svc.Decline(context.Background(), match.ID, match.ArtistID); err != nil {
		t.Fatalf("second decline should succeed, got %v", err)
	}

	// The resolver ran twice but the second pass is a terminal-fee no-op,
	// and the match_declined event was only written once.
	if len(f.resolver.calls) != 2 {
		t.Fatalf("expected resolver to run on both calls, got %v", f.resolver.calls)
	}
	if n := f.countOutboxEvents(t, enums.EventMatchDeclined, match.ID); n != 1 {
		t.Fatalf("expected one match_declined event, got %d", n)
	}
}

func TestDeclineGhostedMatchConflicts(t *testing.T) {
	f := newMatchServiceFixture(t)
	match := f.seedMatch(t, enums.MatchStatusGhosted)

	_, err := f.svc.Decline(context.Background(), match.ID, match.ArtistID)
	if err == nil {
		t.Fatal("expected state conflict")
	}
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeStateConflict {
		t.Fatalf("expected %s, got %v", errors.CodeStateConflict, err)
	}
	if len(f.resolver.calls) != 0 {
		t.Fatalf("resolver must not run for ghosted matches, got %v", f.resolver.calls)
	}
}
