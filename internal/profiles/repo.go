package profiles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
)

// Repository manages persistence for marketplace profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	DecrementTrustScore(ctx context.Context, id uuid.UUID, penalty int) error
	TouchLastActive(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a profile repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// DecrementTrustScore lowers the score by penalty, clamped at zero.
func (r *repository) DecrementTrustScore(ctx context.Context, id uuid.UUID, penalty int) error {
	return r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		Update("trust_score", gorm.Expr("CASE WHEN trust_score - ? < 0 THEN 0 ELSE trust_score - ? END", penalty, penalty)).Error
}

func (r *repository) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		Update("last_active_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
