package enums

import "fmt"

// CommitmentFeeStatus maps to the commitment_fee_status_enum enum in Postgres.
type CommitmentFeeStatus string

const (
	CommitmentFeeStatusHeld     CommitmentFeeStatus = "held"
	CommitmentFeeStatusCaptured CommitmentFeeStatus = "captured"
	CommitmentFeeStatusRefunded CommitmentFeeStatus = "refunded"
)

var validCommitmentFeeStatuses = []CommitmentFeeStatus{
	CommitmentFeeStatusHeld,
	CommitmentFeeStatusCaptured,
	CommitmentFeeStatusRefunded,
}

// String implements fmt.Stringer.
func (c CommitmentFeeStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommitmentFeeStatus.
func (c CommitmentFeeStatus) IsValid() bool {
	for _, candidate := range validCommitmentFeeStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the fee has been settled one way or the other.
func (c CommitmentFeeStatus) IsTerminal() bool {
	return c == CommitmentFeeStatusCaptured || c == CommitmentFeeStatusRefunded
}

// ParseCommitmentFeeStatus converts raw input into a CommitmentFeeStatus.
func ParseCommitmentFeeStatus(value string) (CommitmentFeeStatus, error) {
	for _, candidate := range validCommitmentFeeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commitment fee status %q", value)
}
