package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Repository manages persistence for purchase transactions. After creation a
// transaction only changes through the conditional updates below, driven by
// processor events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error)
	MarkReleasedIf(ctx context.Context, id uuid.UUID, transferID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).First(&transaction, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).First(&transaction, "stripe_payment_intent = ?", paymentIntentID).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// UpdateStatusIf transitions the transaction only when it still holds the
// expected status. Returns false when a replayed or racing event lost.
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error) {
	updates := map[string]any{"status": to}
	if to == enums.TransactionStatusEscrowed {
		updates["escrowed_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// MarkReleasedIf moves an escrowed transaction to released and records the
// payout transfer.
func (r *repository) MarkReleasedIf(ctx context.Context, id uuid.UUID, transferID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusEscrowed).
		Updates(map[string]any{
			"status":             enums.TransactionStatusReleased,
			"stripe_transfer_id": transferID,
			"released_at":        time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}
