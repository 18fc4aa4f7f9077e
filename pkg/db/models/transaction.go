package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Transaction tracks an artwork purchase from intent creation through escrow
// and payout release. MatchID is optional; direct purchases skip the
// introduction flow entirely.
type Transaction struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MatchID               *uuid.UUID              `gorm:"column:match_id;type:uuid"`
	ArtworkID             uuid.UUID               `gorm:"column:artwork_id;type:uuid;not null"`
	BuyerID               uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null"`
	ArtistID              uuid.UUID               `gorm:"column:artist_id;type:uuid;not null"`
	UseType               enums.UseType           `gorm:"column:use_type;type:use_type_enum;not null"`
	BasePriceCents        int64                   `gorm:"column:base_price_cents;not null"`
	CommercialUpliftCents int64                   `gorm:"column:commercial_uplift_cents;not null;default:0"`
	PlatformFeeCents      int64                   `gorm:"column:platform_fee_cents;not null"`
	ArtistPayoutCents     int64                   `gorm:"column:artist_payout_cents;not null"`
	Status                enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:'pending'"`
	StripePaymentIntent   string                  `gorm:"column:stripe_payment_intent;not null;uniqueIndex:ux_transactions_payment_intent"`
	StripeTransferID      *string                 `gorm:"column:stripe_transfer_id"`
	EscrowedAt            *time.Time              `gorm:"column:escrowed_at"`
	ReleasedAt            *time.Time              `gorm:"column:released_at"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalCents is the full amount the buyer is charged.
func (t Transaction) TotalCents() int64 {
	return t.BasePriceCents + t.CommercialUpliftCents
}
