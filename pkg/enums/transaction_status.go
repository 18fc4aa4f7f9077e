package enums

import "fmt"

// TransactionStatus maps to the transaction_status_enum enum in Postgres.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusEscrowed TransactionStatus = "escrowed"
	TransactionStatusReleased TransactionStatus = "released"
	TransactionStatusRefunded TransactionStatus = "refunded"
	TransactionStatusDisputed TransactionStatus = "disputed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusEscrowed,
	TransactionStatusReleased,
	TransactionStatusRefunded,
	TransactionStatusDisputed,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the money movement is settled. Disputed is
// terminal for the state machine; resolution happens in the processor
// dashboard, not here.
func (t TransactionStatus) IsTerminal() bool {
	return t == TransactionStatusReleased || t == TransactionStatusRefunded || t == TransactionStatusDisputed
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
