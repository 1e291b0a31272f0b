package enums

import "fmt"

// DecisionState tracks a routing decision through fan-out, scoring, and
// selection. Selected and failed are terminal.
type DecisionState string

const (
	DecisionPending  DecisionState = "pending"
	DecisionPartial  DecisionState = "partial"
	DecisionScored   DecisionState = "scored"
	DecisionSelected DecisionState = "selected"
	DecisionFailed   DecisionState = "failed"
)

var validDecisionStates = []DecisionState{
	DecisionPending,
	DecisionPartial,
	DecisionScored,
	DecisionSelected,
	DecisionFailed,
}

var decisionTransitions = map[DecisionState][]DecisionState{
	DecisionPending:  {DecisionPartial, DecisionFailed},
	DecisionPartial:  {DecisionScored, DecisionFailed},
	DecisionScored:   {DecisionSelected},
	DecisionSelected: {},
	DecisionFailed:   {},
}

// String implements fmt.Stringer.
func (d DecisionState) String() string {
	return string(d)
}

// Terminal reports whether no further transition is allowed.
func (d DecisionState) Terminal() bool {
	return d == DecisionSelected || d == DecisionFailed
}

// CanTransitionTo reports whether moving to next is a legal step.
func (d DecisionState) CanTransitionTo(next DecisionState) bool {
	for _, candidate := range decisionTransitions[d] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsValid reports whether the value is a known DecisionState.
func (d DecisionState) IsValid() bool {
	for _, candidate := range validDecisionStates {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDecisionState converts raw input into a DecisionState.
func ParseDecisionState(value string) (DecisionState, error) {
	for _, candidate := range validDecisionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid decision state %q", value)
}
