package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Match is an introduction between a collector and an artist, anchored to the
// artwork that sparked it. It only exists once the collector's commitment fee
// has been authorized.
type Match struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ArtistID    uuid.UUID         `gorm:"column:artist_id;type:uuid;not null"`
	CollectorID uuid.UUID         `gorm:"column:collector_id;type:uuid;not null"`
	ArtworkID   uuid.UUID         `gorm:"column:artwork_id;type:uuid;not null"`
	Status      enums.MatchStatus `gorm:"column:status;type:match_status_enum;not null;default:'pending'"`
	DecidedAt   *time.Time        `gorm:"column:decided_at"`
	GhostedAt   *time.Time        `gorm:"column:ghosted_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
