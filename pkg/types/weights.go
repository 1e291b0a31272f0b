package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// WeightSumTolerance is the allowed drift when validating that a weight
// vector sums to 1.0.
const WeightSumTolerance = 1e-6

// Weights holds the five scoring dimensions used to rank provider quotes.
// A valid vector sums to 1.0 within WeightSumTolerance.
type Weights struct {
	Price        float64 `json:"price"`
	Speed        float64 `json:"speed"`
	Availability float64 `json:"availability"`
	Margin       float64 `json:"margin"`
	Reliability  float64 `json:"reliability"`
}

// Sum returns the total of all five dimensions.
func (w Weights) Sum() float64 {
	return w.Price + w.Speed + w.Availability + w.Margin + w.Reliability
}

// Validate checks that every dimension is in [0,1] and the vector sums to 1.0.
func (w Weights) Validate() error {
	for name, v := range w.dimensions() {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s out of range: %v", name, v)
		}
	}
	if math.Abs(w.Sum()-1.0) > WeightSumTolerance {
		return fmt.Errorf("weights sum to %v, want 1.0", w.Sum())
	}
	return nil
}

// Normalize rescales the vector so it sums to 1.0. A zero vector is returned
// unchanged.
func (w Weights) Normalize() Weights {
	sum := w.Sum()
	if sum == 0 {
		return w
	}
	return Weights{
		Price:        w.Price / sum,
		Speed:        w.Speed / sum,
		Availability: w.Availability / sum,
		Margin:       w.Margin / sum,
		Reliability:  w.Reliability / sum,
	}
}

// MaxDelta returns the largest absolute per-dimension difference between two
// vectors.
func (w Weights) MaxDelta(other Weights) float64 {
	deltas := []float64{
		w.Price - other.Price,
		w.Speed - other.Speed,
		w.Availability - other.Availability,
		w.Margin - other.Margin,
		w.Reliability - other.Reliability,
	}
	max := 0.0
	for _, d := range deltas {
		if a := math.Abs(d); a > max {
			max = a
		}
	}
	return max
}

func (w Weights) dimensions() map[string]float64 {
	return map[string]float64{
		"price":        w.Price,
		"speed":        w.Speed,
		"availability": w.Availability,
		"margin":       w.Margin,
		"reliability":  w.Reliability,
	}
}

// Value serializes the weights to JSON for a JSONB column.
func (w Weights) Value() (driver.Value, error) {
	return json.Marshal(w)
}

// Scan decodes JSONB into the weight vector.
func (w *Weights) Scan(value interface{}) error {
	if value == nil {
		*w = Weights{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, w)
}
