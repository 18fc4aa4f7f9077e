package enums

import "fmt"

// MatchStatus maps to the match_status_enum enum in Postgres.
//
// Accepting an introduction moves the match straight to active; there is no
// persisted intermediate state between acceptance and conversation.
type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusActive   MatchStatus = "active"
	MatchStatusDeclined MatchStatus = "declined"
	MatchStatusGhosted  MatchStatus = "ghosted"
)

var validMatchStatuses = []MatchStatus{
	MatchStatusPending,
	MatchStatusActive,
	MatchStatusDeclined,
	MatchStatusGhosted,
}

// String implements fmt.Stringer.
func (m MatchStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MatchStatus.
func (m MatchStatus) IsValid() bool {
	for _, candidate := range validMatchStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the match can never transition again.
func (m MatchStatus) IsTerminal() bool {
	return m == MatchStatusDeclined || m == MatchStatusGhosted
}

// ParseMatchStatus converts raw input into a MatchStatus.
func ParseMatchStatus(value string) (MatchStatus, error) {
	for _, candidate := range validMatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid match status %q", value)
}
