package routing

import (
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// DefaultWeights is the balanced preset and the seed vector for the tuning
// loop before any adjustment has been recorded.
func DefaultWeights() types.Weights {
	return types.Weights{
		Price:        0.30,
		Speed:        0.15,
		Availability: 0.25,
		Margin:       0.20,
		Reliability:  0.10,
	}
}

// presetWeights maps the non-balanced optimize-for presets to fixed vectors.
// The balanced preset is resolved from the tuning snapshot instead, so it
// tracks adjustments over time.
var presetWeights = map[enums.OptimizeFor]types.Weights{
	enums.OptimizeForPrice: {
		Price:        0.50,
		Speed:        0.10,
		Availability: 0.20,
		Margin:       0.10,
		Reliability:  0.10,
	},
	enums.OptimizeForSpeed: {
		Price:        0.15,
		Speed:        0.45,
		Availability: 0.20,
		Margin:       0.10,
		Reliability:  0.10,
	},
	enums.OptimizeForMargin: {
		Price:        0.15,
		Speed:        0.10,
		Availability: 0.20,
		Margin:       0.45,
		Reliability:  0.10,
	},
}

// resolveWeights picks the weight vector for one decision. Precedence:
// explicit caller weights, then a named preset, then the active tuned
// vector. The result is fixed for the decision's whole lifetime.
func resolveWeights(prefs *OrderPreferences, active types.Weights) (types.Weights, error) {
	if prefs != nil && prefs.Weights != nil {
		if err := prefs.Weights.Validate(); err != nil {
			return types.Weights{}, err
		}
		return *prefs.Weights, nil
	}
	if prefs != nil && prefs.OptimizeFor != "" && prefs.OptimizeFor != enums.OptimizeForBalanced {
		if preset, ok := presetWeights[prefs.OptimizeFor]; ok {
			return preset, nil
		}
	}
	return active, nil
}
