package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

type fakeHeldFees struct {
	fees []models.CommitmentFee
}

func (f *fakeHeldFees) FindHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CommitmentFee, error) {
	return f.fees, nil
}

type fakeMatchFinder struct {
	matches map[uuid.UUID]*models.Match
}

func (f *fakeMatchFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	match, ok := f.matches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return match, nil
}

func TestFeeReconcileConvergesTerminalMatches(t *testing.T) {
	declinedMatch := &models.Match{ID: uuid.New(), Status: enums.MatchStatusDeclined}
	ghostedMatch := &models.Match{ID: uuid.New(), Status: enums.MatchStatusGhosted}
	openMatch := &models.Match{ID: uuid.New(), Status: enums.MatchStatusActive}

	fees := &fakeHeldFees{fees: []models.CommitmentFee{
		{ID: uuid.New(), MatchID: declinedMatch.ID, Status: enums.CommitmentFeeStatusHeld},
		{ID: uuid.New(), MatchID: ghostedMatch.ID, Status: enums.CommitmentFeeStatusHeld},
		{ID: uuid.New(), MatchID: openMatch.ID, Status: enums.CommitmentFeeStatusHeld},
	}}
	finder := &fakeMatchFinder{matches: map[uuid.UUID]*models.Match{
		declinedMatch.ID: declinedMatch,
		ghostedMatch.ID:  ghostedMatch,
		openMatch.ID:     openMatch,
	}}
	resolver := newRecordingResolver()

	job, err := NewFeeReconcileJob(FeeReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Fees:     fees,
		Matches:  finder,
		Resolver: resolver,
	})
	if err != nil {
		t.Fatalf("constructing job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := resolver.calls[declinedMatch.ID]; len(got) != 1 || got[0] != enums.FeeResolutionRefund {
		t.Fatalf("declined match should refund, got %v", got)
	}
	if got := resolver.calls[ghostedMatch.ID]; len(got) != 1 || got[0] != enums.FeeResolutionCapture {
		t.Fatalf("ghosted match should capture, got %v", got)
	}
	if got := resolver.calls[openMatch.ID]; len(got) != 0 {
		t.Fatalf("open match must be left alone, got %v", got)
	}
}

func TestFeeReconcileReportsMissingMatches(t *testing.T) {
	fees := &fakeHeldFees{fees: []models.CommitmentFee{
		{ID: uuid.New(), MatchID: uuid.New(), Status: enums.CommitmentFeeStatusHeld},
	}}
	resolver := newRecordingResolver()

	job, err := NewFeeReconcileJob(FeeReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Fees:     fees,
		Matches:  &fakeMatchFinder{matches: map[uuid.UUID]*models.Match{}},
		Resolver: resolver,
	})
	if err != nil {
		t.Fatalf("constructing job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error for orphaned fee")
	}
	if len(resolver.calls) != 0 {
		t.Fatalf("nothing should resolve, got %v", resolver.calls)
	}
}
