package enums

import "fmt"

// FeeResolution names the two ways a held commitment fee can terminate:
// capture forfeits the hold to the platform, refund releases it back to the
// collector.
type FeeResolution string

const (
	FeeResolutionCapture FeeResolution = "capture"
	FeeResolutionRefund  FeeResolution = "refund"
)

var validFeeResolutions = []FeeResolution{
	FeeResolutionCapture,
	FeeResolutionRefund,
}

// String implements fmt.Stringer.
func (f FeeResolution) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FeeResolution.
func (f FeeResolution) IsValid() bool {
	for _, candidate := range validFeeResolutions {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFeeResolution converts raw input into a FeeResolution.
func ParseFeeResolution(value string) (FeeResolution, error) {
	for _, candidate := range validFeeResolutions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fee resolution %q", value)
}
