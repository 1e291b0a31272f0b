package enums

import "fmt"

// ProviderMode selects how an adapter sources its quote.
type ProviderMode string

const (
	// ProviderModeMock forces the deterministic offline path.
	ProviderModeMock ProviderMode = "mock"
	// ProviderModeReal calls the upstream API with no fallback.
	ProviderModeReal ProviderMode = "real"
	// ProviderModeRealWithFallback calls upstream and falls back to the
	// mock path on retryable failure.
	ProviderModeRealWithFallback ProviderMode = "real_with_fallback"
)

var validProviderModes = []ProviderMode{
	ProviderModeMock,
	ProviderModeReal,
	ProviderModeRealWithFallback,
}

// String implements fmt.Stringer.
func (m ProviderMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ProviderMode.
func (m ProviderMode) IsValid() bool {
	for _, candidate := range validProviderModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseProviderMode converts raw input into a ProviderMode.
func ParseProviderMode(value string) (ProviderMode, error) {
	for _, candidate := range validProviderModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider mode %q", value)
}
