package matches

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

func setupMatchTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

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
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedMatch(t *testing.T, db *gorm.DB, status enums.MatchStatus, createdAt time.Time) *models.Match {
	t.Helper()
	match := &models.Match{
		ID:          uuid.New(),
		ArtistID:    uuid.New(),
		CollectorID: uuid.New(),
		ArtworkID:   uuid.New(),
		Status:      status,
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(match).Error)
	return match
}

func TestUpdateStatusIfWinsOnce(t *testing.T) {
	db := setupMatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	match := seedMatch(t, db, enums.MatchStatusPending, time.Now())

	ok, err := repo.UpdateStatusIf(ctx, match.ID, enums.MatchStatusPending, enums.MatchStatusActive)
	require.NoError(t, err)
	assert.True(t, ok)

	// A racing caller with a stale expectation loses.
	ok, err = repo.UpdateStatusIf(ctx, match.ID, enums.MatchStatusPending, enums.MatchStatusDeclined)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.MatchStatusActive, stored.Status)
	assert.NotNil(t, stored.DecidedAt)
}

func TestMarkGhostedSkipsTerminalMatches(t *testing.T) {
	db := setupMatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	active := seedMatch(t, db, enums.MatchStatusActive, time.Now())
	declined := seedMatch(t, db, enums.MatchStatusDeclined, time.Now())

	ok, err := repo.MarkGhosted(ctx, active.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.MatchStatusGhosted, stored.Status)
	assert.NotNil(t, stored.GhostedAt)

	// Second pass over the same match is a no-op.
	ok, err = repo.MarkGhosted(ctx, active.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkGhosted(ctx, declined.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindStaleBefore(t *testing.T) {
	db := setupMatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now()
	cutoff := now.AddDate(0, 0, -7)

	oldPending := seedMatch(t, db, enums.MatchStatusPending, now.AddDate(0, 0, -10))
	oldActive := seedMatch(t, db, enums.MatchStatusActive, now.AddDate(0, 0, -8))
	seedMatch(t, db, enums.MatchStatusPending, now.AddDate(0, 0, -2))
	seedMatch(t, db, enums.MatchStatusGhosted, now.AddDate(0, 0, -30))
	seedMatch(t, db, enums.MatchStatusDeclined, now.AddDate(0, 0, -30))

	stale, err := repo.FindStaleBefore(ctx, cutoff, 0)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	ids := []uuid.UUID{stale[0].ID, stale[1].ID}
	assert.Contains(t, ids, oldPending.ID)
	assert.Contains(t, ids, oldActive.ID)

	limited, err := repo.FindStaleBefore(ctx, cutoff, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, oldPending.ID, limited[0].ID)
}
