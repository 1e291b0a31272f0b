package types

import (
	"database/sql/driver"
	"encoding/json"
)

// PerformanceDelta captures the period-over-period movement that motivated a
// weight adjustment.
type PerformanceDelta struct {
	OnTimeRateDelta       float64 `json:"on_time_rate_delta"`
	CancellationRateDelta float64 `json:"cancellation_rate_delta"`
	FulfillmentRateDelta  float64 `json:"fulfillment_rate_delta"`
}

// Value serializes the delta to JSON.
func (p PerformanceDelta) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan decodes JSONB into the delta struct.
func (p *PerformanceDelta) Scan(value interface{}) error {
	if value == nil {
		*p = PerformanceDelta{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, p)
}
