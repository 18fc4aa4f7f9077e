package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/enums"
)

// LedgerEvent records an immutable money lifecycle event tied to a commitment
// fee or a purchase.
type LedgerEvent struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MatchID       *uuid.UUID            `gorm:"column:match_id;type:uuid"`
	TransactionID *uuid.UUID            `gorm:"column:transaction_id;type:uuid"`
	Type          enums.LedgerEventType `gorm:"column:type;type:ledger_event_type_enum;not null"`
	AmountCents   int64                 `gorm:"column:amount_cents;not null"`
	Metadata      json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
