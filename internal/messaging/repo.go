package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
)

// Repository manages persistence for match messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, message *models.Message) error
	CountSince(ctx context.Context, matchID uuid.UUID, since time.Time) (int64, error)
	ListByMatchID(ctx context.Context, matchID uuid.UUID, limit int) ([]models.Message, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a message repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// CountSince reports chat activity after the cutoff; the ghost sweep uses it
// to spare conversations that are merely slow.
func (r *repository) CountSince(ctx context.Context, matchID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("match_id = ? AND created_at > ?", matchID, since).
		Count(&count).Error
	return count, err
}

func (r *repository) ListByMatchID(ctx context.Context, matchID uuid.UUID, limit int) ([]models.Message, error) {
	var messages []models.Message
	q := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	return messages, err
}
