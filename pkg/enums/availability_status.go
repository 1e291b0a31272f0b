package enums

import "fmt"

// AvailabilityStatus records how a requested item was resolved against a
// provider catalog.
type AvailabilityStatus string

const (
	AvailabilityFound       AvailabilityStatus = "found"
	AvailabilitySubstituted AvailabilityStatus = "substituted"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
)

var validAvailabilityStatuses = []AvailabilityStatus{
	AvailabilityFound,
	AvailabilitySubstituted,
	AvailabilityUnavailable,
}

// String implements fmt.Stringer.
func (a AvailabilityStatus) String() string {
	return string(a)
}

// Fulfillable reports whether the item counts toward availability scoring.
func (a AvailabilityStatus) Fulfillable() bool {
	return a == AvailabilityFound || a == AvailabilitySubstituted
}

// IsValid reports whether the value is a known AvailabilityStatus.
func (a AvailabilityStatus) IsValid() bool {
	for _, candidate := range validAvailabilityStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAvailabilityStatus converts raw input into an AvailabilityStatus.
func ParseAvailabilityStatus(value string) (AvailabilityStatus, error) {
	for _, candidate := range validAvailabilityStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid availability status %q", value)
}
