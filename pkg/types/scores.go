package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// ScoreBreakdown records the component scores behind one provider's ranking.
// Component scores are normalized to [0,100] relative to the decision set.
type ScoreBreakdown struct {
	PriceScore        float64 `json:"price_score"`
	SpeedScore        float64 `json:"speed_score"`
	AvailabilityScore float64 `json:"availability_score"`
	MarginScore       float64 `json:"margin_score"`
	ReliabilityScore  float64 `json:"reliability_score"`
	WeightedTotal     float64 `json:"weighted_total"`
	Explanation       string  `json:"explanation,omitempty"`
}

// ProviderScores maps provider ids to their score breakdowns, persisted as
// JSONB on the decision audit row.
type ProviderScores map[enums.ProviderID]ScoreBreakdown

// Value serializes the score map to JSON.
func (p ProviderScores) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan decodes JSONB into the score map.
func (p *ProviderScores) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded ProviderScores
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}
