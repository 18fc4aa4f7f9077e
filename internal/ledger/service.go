package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

// Service defines operations that record ledger events.
type Service interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	HasMatchEvent(ctx context.Context, matchID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
	HasTransactionEvent(ctx context.Context, transactionID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
// Exactly one of MatchID/TransactionID must be set; fee events anchor to the
// match, purchase events to the transaction.
type RecordLedgerEventInput struct {
	MatchID       *uuid.UUID            `json:"match_id,omitempty"`
	TransactionID *uuid.UUID            `json:"transaction_id,omitempty"`
	Type          enums.LedgerEventType `json:"type"`
	AmountCents   int64                 `json:"amount_cents"`
	Metadata      json.RawMessage       `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordEvent writes an immutable ledger entry, joining the caller's
// transaction when one is provided.
func (s *service) RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	if input.MatchID == nil && input.TransactionID == nil {
		return nil, fmt.Errorf("match id or transaction id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}

	event := &models.LedgerEvent{
		ID:            uuid.New(),
		MatchID:       input.MatchID,
		TransactionID: input.TransactionID,
		Type:          input.Type,
		AmountCents:   input.AmountCents,
		Metadata:      input.Metadata,
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasMatchEvent(ctx context.Context, matchID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if matchID == uuid.Nil {
		return false, fmt.Errorf("match id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}

	events, err := s.repo.ListByMatchID(ctx, matchID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) HasTransactionEvent(ctx context.Context, transactionID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if transactionID == uuid.Nil {
		return false, fmt.Errorf("transaction id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}

	events, err := s.repo.ListByTransactionID(ctx, transactionID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}
