package enums

import "fmt"

// OutcomeEventType names the envelope types accepted on the order-outcomes
// subscription.
type OutcomeEventType string

const (
	OutcomeEventRecorded OutcomeEventType = "order.outcome.recorded"
)

var validOutcomeEventTypes = []OutcomeEventType{
	OutcomeEventRecorded,
}

// String implements fmt.Stringer.
func (o OutcomeEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutcomeEventType.
func (o OutcomeEventType) IsValid() bool {
	for _, candidate := range validOutcomeEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutcomeEventType converts raw input into an OutcomeEventType.
func ParseOutcomeEventType(value string) (OutcomeEventType, error) {
	for _, candidate := range validOutcomeEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outcome event type %q", value)
}
