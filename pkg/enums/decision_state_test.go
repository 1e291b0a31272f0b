package enums

import "testing"

func TestDecisionStateTransitions(t *testing.T) {
	legal := []struct {
		from, to DecisionState
	}{
		{DecisionPending, DecisionPartial},
		{DecisionPending, DecisionFailed},
		{DecisionPartial, DecisionScored},
		{DecisionPartial, DecisionFailed},
		{DecisionScored, DecisionSelected},
	}
	for _, tt := range legal {
		if !tt.from.CanTransitionTo(tt.to) {
			t.Fatalf("%s -> %s should be legal", tt.from, tt.to)
		}
	}

	illegal := []struct {
		from, to DecisionState
	}{
		{DecisionPending, DecisionSelected},
		{DecisionScored, DecisionFailed},
		{DecisionSelected, DecisionPending},
		{DecisionFailed, DecisionScored},
	}
	for _, tt := range illegal {
		if tt.from.CanTransitionTo(tt.to) {
			t.Fatalf("%s -> %s should be illegal", tt.from, tt.to)
		}
	}

	if !DecisionSelected.Terminal() || !DecisionFailed.Terminal() {
		t.Fatalf("selected and failed must be terminal")
	}
	if DecisionScored.Terminal() {
		t.Fatalf("scored is not terminal")
	}
}

func TestParseProviderID(t *testing.T) {
	id, err := ParseProviderID("kroger")
	if err != nil || id != ProviderKroger {
		t.Fatalf("expected kroger, got %v err=%v", id, err)
	}
	if _, err := ParseProviderID("doordash"); err == nil {
		t.Fatalf("unknown provider should error")
	}
	if len(ProviderIDs()) != 4 {
		t.Fatalf("provider set must stay closed at 4")
	}
}
