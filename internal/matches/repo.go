package matches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Repository manages persistence for matches. Status changes go through the
// conditional updates below so concurrent callers (user actions, the ghost
// sweep, webhook replays) can never both win the same transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, match *models.Match) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
	FindStaleBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Match, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.MatchStatus) (bool, error)
	MarkGhosted(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a match repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	if err := r.db.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

// FindStaleBefore returns open matches created before the cutoff, oldest
// first. The ghost sweep still checks message activity before acting on them.
func (r *repository) FindStaleBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Match, error) {
	var matches []models.Match
	q := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []enums.MatchStatus{enums.MatchStatusPending, enums.MatchStatusActive}, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&matches).Error
	return matches, err
}

// UpdateStatusIf transitions the match only when it still holds the expected
// status. Returns false when a concurrent writer got there first.
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.MatchStatus) (bool, error) {
	updates := map[string]any{"status": to}
	if from == enums.MatchStatusPending && (to == enums.MatchStatusActive || to == enums.MatchStatusDeclined) {
		updates["decided_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// MarkGhosted moves any still-open match to ghosted. Terminal matches are
// left untouched so re-running the sweep stays a no-op.
func (r *repository) MarkGhosted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status NOT IN ?", id, []enums.MatchStatus{enums.MatchStatusDeclined, enums.MatchStatusGhosted}).
		Updates(map[string]any{
			"status":     enums.MatchStatusGhosted,
			"ghosted_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}
