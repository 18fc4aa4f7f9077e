package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateMatch         OutboxAggregateType = "match"
	AggregateCommitmentFee OutboxAggregateType = "commitment_fee"
	AggregateTransaction   OutboxAggregateType = "transaction"
	AggregateNotification  OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMatch,
	AggregateCommitmentFee,
	AggregateTransaction,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventMatchCreated          OutboxEventType = "match_created"
	EventMatchAccepted         OutboxEventType = "match_accepted"
	EventMatchDeclined         OutboxEventType = "match_declined"
	EventMatchGhosted          OutboxEventType = "match_ghosted"
	EventFeeCaptured           OutboxEventType = "fee_captured"
	EventFeeRefunded           OutboxEventType = "fee_refunded"
	EventPurchaseInitiated     OutboxEventType = "purchase_initiated"
	EventPurchaseEscrowed      OutboxEventType = "purchase_escrowed"
	EventPurchaseReleased      OutboxEventType = "purchase_released"
	EventPurchaseRefunded      OutboxEventType = "purchase_refunded"
	EventPurchaseDisputed      OutboxEventType = "purchase_disputed"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventMatchCreated,
	EventMatchAccepted,
	EventMatchDeclined,
	EventMatchGhosted,
	EventFeeCaptured,
	EventFeeRefunded,
	EventPurchaseInitiated,
	EventPurchaseEscrowed,
	EventPurchaseReleased,
	EventPurchaseRefunded,
	EventPurchaseDisputed,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
