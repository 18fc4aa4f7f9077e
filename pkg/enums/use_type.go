package enums

import "fmt"

// UseType maps to the use_type_enum enum in Postgres and drives purchase
// pricing: commercial use carries an uplift over the listed price.
type UseType string

const (
	UseTypePersonal   UseType = "personal"
	UseTypeDisplay    UseType = "display"
	UseTypeCommercial UseType = "commercial"
)

var validUseTypes = []UseType{
	UseTypePersonal,
	UseTypeDisplay,
	UseTypeCommercial,
}

// String implements fmt.Stringer.
func (u UseType) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UseType.
func (u UseType) IsValid() bool {
	for _, candidate := range validUseTypes {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUseType converts raw input into a UseType.
func ParseUseType(value string) (UseType, error) {
	for _, candidate := range validUseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid use type %q", value)
}
