package commitments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Repository manages persistence for commitment fees. The status column only
// moves forward; UpdateStatusIf is the sole mutation path so concurrent
// resolvers and webhook replays can never double-terminate a fee.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, fee *models.CommitmentFee) error
	FindByMatchID(ctx context.Context, matchID uuid.UUID) (*models.CommitmentFee, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.CommitmentFee, error)
	FindHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CommitmentFee, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.CommitmentFeeStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commitment fee repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, fee *models.CommitmentFee) error {
	return r.db.WithContext(ctx).Create(fee).Error
}

func (r *repository) FindByMatchID(ctx context.Context, matchID uuid.UUID) (*models.CommitmentFee, error) {
	var fee models.CommitmentFee
	if err := r.db.WithContext(ctx).First(&fee, "match_id = ?", matchID).Error; err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.CommitmentFee, error) {
	var fee models.CommitmentFee
	if err := r.db.WithContext(ctx).First(&fee, "stripe_payment_intent = ?", paymentIntentID).Error; err != nil {
		return nil, err
	}
	return &fee, nil
}

// FindHeldBefore returns fees still held past the cutoff, oldest first. The
// reconcile job uses it to converge fees whose matches already closed.
func (r *repository) FindHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CommitmentFee, error) {
	var fees []models.CommitmentFee
	q := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.CommitmentFeeStatusHeld, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&fees).Error
	return fees, err
}

// UpdateStatusIf terminates the fee only when it still holds the expected
// status. Returns false when a concurrent resolver got there first.
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.CommitmentFeeStatus) (bool, error) {
	updates := map[string]any{"status": to}
	if to.IsTerminal() {
		updates["resolved_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Model(&models.CommitmentFee{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}
