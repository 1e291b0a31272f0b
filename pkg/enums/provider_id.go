package enums

import "fmt"

// ProviderID identifies a commerce provider the router can quote against.
// The set is closed; adding a provider means adding an adapter.
type ProviderID string

const (
	ProviderMealMe    ProviderID = "mealme"
	ProviderInstacart ProviderID = "instacart"
	ProviderKroger    ProviderID = "kroger"
	ProviderWalmart   ProviderID = "walmart"
)

var validProviderIDs = []ProviderID{
	ProviderMealMe,
	ProviderInstacart,
	ProviderKroger,
	ProviderWalmart,
}

// ProviderIDs returns the closed provider set in declaration order.
func ProviderIDs() []ProviderID {
	out := make([]ProviderID, len(validProviderIDs))
	copy(out, validProviderIDs)
	return out
}

// String implements fmt.Stringer.
func (p ProviderID) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProviderID.
func (p ProviderID) IsValid() bool {
	for _, candidate := range validProviderIDs {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProviderID converts raw input into a ProviderID.
func ParseProviderID(value string) (ProviderID, error) {
	for _, candidate := range validProviderIDs {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider id %q", value)
}
