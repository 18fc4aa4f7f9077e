package enums

import "fmt"

// LedgerEventType maps to the ledger_event_type_enum enum in Postgres.
type LedgerEventType string

const (
	LedgerEventTypeFeeHeld           LedgerEventType = "fee_held"
	LedgerEventTypeFeeCaptured       LedgerEventType = "fee_captured"
	LedgerEventTypeFeeRefunded       LedgerEventType = "fee_refunded"
	LedgerEventTypePurchaseInitiated LedgerEventType = "purchase_initiated"
	LedgerEventTypePurchaseEscrowed  LedgerEventType = "purchase_escrowed"
	LedgerEventTypePurchaseReleased  LedgerEventType = "purchase_released"
	LedgerEventTypePurchaseRefunded  LedgerEventType = "purchase_refunded"
	LedgerEventTypePurchaseDisputed  LedgerEventType = "purchase_disputed"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypeFeeHeld,
	LedgerEventTypeFeeCaptured,
	LedgerEventTypeFeeRefunded,
	LedgerEventTypePurchaseInitiated,
	LedgerEventTypePurchaseEscrowed,
	LedgerEventTypePurchaseReleased,
	LedgerEventTypePurchaseRefunded,
	LedgerEventTypePurchaseDisputed,
}

// IsValid reports whether the value matches the canonical ledger event enum.
func (t LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
