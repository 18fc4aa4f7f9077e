package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the marketplace-facing identity for both collectors and artists.
// TrustScore decays when a collector ghosts an accepted introduction and gates
// how much they pay to open the next one.
type Profile struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DisplayName      string     `gorm:"column:display_name;type:text;not null"`
	TrustScore       int        `gorm:"column:trust_score;not null;default:100"`
	StripeCustomerID *string    `gorm:"column:stripe_customer_id"`
	StripeAccountID  *string    `gorm:"column:stripe_account_id"`
	LastActiveAt     *time.Time `gorm:"column:last_active_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
