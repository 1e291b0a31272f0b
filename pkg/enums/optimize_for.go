package enums

import "fmt"

// OptimizeFor selects the scoring-weight preset applied to a routing
// decision.
type OptimizeFor string

const (
	OptimizeForPrice    OptimizeFor = "price"
	OptimizeForSpeed    OptimizeFor = "speed"
	OptimizeForMargin   OptimizeFor = "margin"
	OptimizeForBalanced OptimizeFor = "balanced"
)

var validOptimizeFors = []OptimizeFor{
	OptimizeForPrice,
	OptimizeForSpeed,
	OptimizeForMargin,
	OptimizeForBalanced,
}

// String implements fmt.Stringer.
func (o OptimizeFor) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OptimizeFor preset.
func (o OptimizeFor) IsValid() bool {
	for _, candidate := range validOptimizeFors {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOptimizeFor converts raw input into an OptimizeFor preset.
func ParseOptimizeFor(value string) (OptimizeFor, error) {
	for _, candidate := range validOptimizeFors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid optimize-for preset %q", value)
}
