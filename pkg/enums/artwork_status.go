package enums

import "fmt"

// ArtworkStatus maps to the artwork_status_enum enum in Postgres.
type ArtworkStatus string

const (
	ArtworkStatusAvailable ArtworkStatus = "available"
	ArtworkStatusSold      ArtworkStatus = "sold"
)

var validArtworkStatuses = []ArtworkStatus{
	ArtworkStatusAvailable,
	ArtworkStatusSold,
}

// String implements fmt.Stringer.
func (a ArtworkStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ArtworkStatus.
func (a ArtworkStatus) IsValid() bool {
	for _, candidate := range validArtworkStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseArtworkStatus converts raw input into an ArtworkStatus.
func ParseArtworkStatus(value string) (ArtworkStatus, error) {
	for _, candidate := range validArtworkStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid artwork status %q", value)
}
