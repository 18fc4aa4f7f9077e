package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/enums"
)

// CommitmentFee is the refundable hold a collector pays when requesting an
// introduction. Exactly one fee exists per match, and each fee maps to exactly
// one processor payment intent.
type CommitmentFee struct {
	ID                  uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MatchID             uuid.UUID                 `gorm:"column:match_id;type:uuid;not null;uniqueIndex:ux_commitment_fees_match"`
	CollectorID         uuid.UUID                 `gorm:"column:collector_id;type:uuid;not null"`
	AmountCents         int64                     `gorm:"column:amount_cents;not null"`
	Status              enums.CommitmentFeeStatus `gorm:"column:status;type:commitment_fee_status_enum;not null;default:'held'"`
	StripePaymentIntent string                    `gorm:"column:stripe_payment_intent;not null;uniqueIndex:ux_commitment_fees_payment_intent"`
	ResolvedAt          *time.Time                `gorm:"column:resolved_at"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
