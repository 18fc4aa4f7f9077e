package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a chat entry inside an active match thread. The ghost sweep uses
// message recency to tell a stalled conversation from an abandoned one.
type Message struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MatchID   uuid.UUID `gorm:"column:match_id;type:uuid;not null;index"`
	SenderID  uuid.UUID `gorm:"column:sender_id;type:uuid;not null"`
	Body      string    `gorm:"column:body;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
