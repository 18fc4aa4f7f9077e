package artworks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Repository manages persistence for listed artworks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Artwork, error)
	MarkSoldIf(ctx context.Context, id uuid.UUID, expected enums.ArtworkStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an artwork repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Artwork, error) {
	var artwork models.Artwork
	if err := r.db.WithContext(ctx).First(&artwork, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &artwork, nil
}

// MarkSoldIf flips the artwork to sold only when it still has the expected
// status. Returns false when another buyer won the race.
func (r *repository) MarkSoldIf(ctx context.Context, id uuid.UUID, expected enums.ArtworkStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Artwork{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", enums.ArtworkStatusSold)
	return res.RowsAffected > 0, res.Error
}
