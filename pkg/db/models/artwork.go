package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Artwork is a listed piece. CommercialPriceCents overrides the default
// commercial uplift when the artist sets an explicit commercial price.
type Artwork struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ArtistID             uuid.UUID           `gorm:"column:artist_id;type:uuid;not null"`
	Title                string              `gorm:"column:title;type:text;not null"`
	PriceCents           int64               `gorm:"column:price_cents;not null"`
	CommercialPriceCents *int64              `gorm:"column:commercial_price_cents"`
	AllowsCommercial     bool                `gorm:"column:allows_commercial;not null;default:false"`
	Status               enums.ArtworkStatus `gorm:"column:status;type:artwork_status_enum;not null;default:'available'"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
