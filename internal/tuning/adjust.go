package tuning

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// deltaNoiseFloor is the minimum period-over-period rate movement that
// counts as a real signal. Anything smaller is sampling noise and produces
// no adjustment.
const deltaNoiseFloor = 0.005

type dimension int

const (
	dimPrice dimension = iota
	dimSpeed
	dimAvailability
	dimMargin
	dimReliability
	dimCount
)

var dimensionNames = [dimCount]string{"price", "speed", "availability", "margin", "reliability"}

func vectorOf(w types.Weights) [dimCount]float64 {
	return [dimCount]float64{w.Price, w.Speed, w.Availability, w.Margin, w.Reliability}
}

func weightsOf(v [dimCount]float64) types.Weights {
	return types.Weights{
		Price:        v[dimPrice],
		Speed:        v[dimSpeed],
		Availability: v[dimAvailability],
		Margin:       v[dimMargin],
		Reliability:  v[dimReliability],
	}
}

// proposal is the raw output of the direction heuristics: which dimensions
// to raise and why.
type proposal struct {
	raises  [dimCount]float64
	reasons []string
}

func (p proposal) empty() bool {
	for _, r := range p.raises {
		if r > 0 {
			return false
		}
	}
	return true
}

// proposeRaises translates the observed performance delta into weight
// raises. Degrading on-time delivery pushes weight toward speed and
// reliability, rising cancellations toward reliability, and falling item
// fulfillment toward availability. Improvements propose nothing; the
// vector only moves in response to degradation.
func proposeRaises(delta types.PerformanceDelta, maxStep float64) proposal {
	var p proposal

	if delta.OnTimeRateDelta < -deltaNoiseFloor {
		mag := math.Min(maxStep, -delta.OnTimeRateDelta)
		p.raises[dimSpeed] += mag
		p.raises[dimReliability] += mag / 2
		p.reasons = append(p.reasons, fmt.Sprintf("on-time rate fell %.1f pts", -delta.OnTimeRateDelta*100))
	}
	if delta.CancellationRateDelta > deltaNoiseFloor {
		p.raises[dimReliability] += math.Min(maxStep, delta.CancellationRateDelta)
		p.reasons = append(p.reasons, fmt.Sprintf("cancellation rate rose %.1f pts", delta.CancellationRateDelta*100))
	}
	if delta.FulfillmentRateDelta < -deltaNoiseFloor {
		p.raises[dimAvailability] += math.Min(maxStep, -delta.FulfillmentRateDelta)
		p.reasons = append(p.reasons, fmt.Sprintf("fulfillment rate fell %.1f pts", -delta.FulfillmentRateDelta*100))
	}

	for i := range p.raises {
		if p.raises[i] > maxStep {
			p.raises[i] = maxStep
		}
	}
	return p
}

// applyRaises moves weight toward the raised dimensions, funding the raises
// from the untouched dimensions in proportion to their current weight. The
// construction is zero-sum, so the result sums to 1.0 without distorting
// renormalization, and no dimension moves more than the cap in either
// direction. When the funders cannot absorb the full raise within the cap,
// the whole proposal is scaled down.
func applyRaises(old types.Weights, p proposal, maxStep float64) types.Weights {
	v := vectorOf(old)

	totalRaise := 0.0
	fundingWeight := 0.0
	for i := dimension(0); i < dimCount; i++ {
		if p.raises[i] > 0 {
			totalRaise += p.raises[i]
		} else {
			fundingWeight += v[i]
		}
	}
	if totalRaise == 0 || fundingWeight == 0 {
		return old
	}

	scale := 1.0
	for i := dimension(0); i < dimCount; i++ {
		if p.raises[i] > 0 {
			continue
		}
		cut := totalRaise * v[i] / fundingWeight
		allowed := math.Min(maxStep, v[i])
		if cut > allowed {
			if s := allowed / cut; s < scale {
				scale = s
			}
		}
	}

	for i := dimension(0); i < dimCount; i++ {
		if p.raises[i] > 0 {
			v[i] += p.raises[i] * scale
		} else {
			v[i] -= totalRaise * scale * v[i] / fundingWeight
		}
	}
	return weightsOf(v).Normalize()
}

// adjustmentReason renders the audit trail's human-readable explanation.
func adjustmentReason(p proposal, old, applied types.Weights) string {
	oldV, newV := vectorOf(old), vectorOf(applied)
	var raised []string
	for i := dimension(0); i < dimCount; i++ {
		if newV[i] > oldV[i]+1e-9 {
			raised = append(raised, fmt.Sprintf("%s +%.3f", dimensionNames[i], newV[i]-oldV[i]))
		}
	}
	sort.Strings(raised)
	if len(raised) == 0 {
		return strings.Join(p.reasons, "; ")
	}
	return strings.Join(p.reasons, "; ") + "; shifted weight toward " + strings.Join(raised, ", ")
}
