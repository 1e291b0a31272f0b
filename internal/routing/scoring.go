package routing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pantryloop/pantryloop-backend/internal/providers"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

const (
	// reliabilityNeutralScore is used for providers without enough outcome
	// history to judge. Neither a penalty nor a reward.
	reliabilityNeutralScore = 70
	// reliabilityMinSamples is the outcome count below which history is too
	// thin to score.
	reliabilityMinSamples = 5
)

// ReliabilityStat is one provider's trailing-window success rate as read
// from the metrics snapshot.
type ReliabilityStat struct {
	SuccessRate float64
	Samples     int
}

// scoreQuotes computes the five component scores for every quote, each
// normalized to [0,100] relative to this decision's set. A single surviving
// quote scores 100 on every relative dimension.
func scoreQuotes(quotes []*providers.ProviderQuote, weights types.Weights, rel map[enums.ProviderID]ReliabilityStat) []ScoredQuote {
	if len(quotes) == 0 {
		return nil
	}

	totals := make([]float64, len(quotes))
	etas := make([]float64, len(quotes))
	margins := make([]float64, len(quotes))
	for i, q := range quotes {
		totals[i] = float64(q.Quote.TotalCents)
		etas[i] = float64(q.Quote.EstimatedDeliveryMinutes)
		margins[i] = marginCents(q)
	}

	minTotal, maxTotal := spread(totals)
	minETA, maxETA := spread(etas)
	minMargin, maxMargin := spread(margins)

	scored := make([]ScoredQuote, len(quotes))
	for i, q := range quotes {
		breakdown := types.ScoreBreakdown{
			PriceScore:        lowerIsBetter(totals[i], minTotal, maxTotal),
			SpeedScore:        lowerIsBetter(etas[i], minETA, maxETA),
			AvailabilityScore: availabilityScore(q),
			MarginScore:       higherIsBetter(margins[i], minMargin, maxMargin),
			ReliabilityScore:  reliabilityScore(rel, q.Provider.ID),
		}
		breakdown.WeightedTotal = breakdown.PriceScore*weights.Price +
			breakdown.SpeedScore*weights.Speed +
			breakdown.AvailabilityScore*weights.Availability +
			breakdown.MarginScore*weights.Margin +
			breakdown.ReliabilityScore*weights.Reliability
		breakdown.Explanation = explain(q)

		scored[i] = ScoredQuote{
			Quote:     q,
			Score:     breakdown.WeightedTotal,
			Breakdown: breakdown,
		}
	}

	sortScored(scored)
	return scored
}

// sortScored orders by weighted total descending, then provider priority
// descending, then provider id ascending. The order is a deterministic total
// order, so identical inputs always select the same winner.
func sortScored(scored []ScoredQuote) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Quote.Config.Priority != scored[j].Quote.Config.Priority {
			return scored[i].Quote.Config.Priority > scored[j].Quote.Config.Priority
		}
		return scored[i].Quote.Provider.ID < scored[j].Quote.Provider.ID
	})
}

// marginCents is the realized commission for one quote in cents. Decimal
// arithmetic keeps rate*subtotal exact before the float compare.
func marginCents(q *providers.ProviderQuote) float64 {
	rate := decimal.NewFromFloat(q.Config.CommissionRate)
	subtotal := decimal.NewFromInt(int64(q.Quote.SubtotalCents))
	return rate.Mul(subtotal).InexactFloat64()
}

func availabilityScore(q *providers.ProviderQuote) float64 {
	requested := len(q.ItemAvailability)
	if requested == 0 {
		return 0
	}
	return 100 * float64(q.FulfillableItems()) / float64(requested)
}

func reliabilityScore(rel map[enums.ProviderID]ReliabilityStat, id enums.ProviderID) float64 {
	stat, ok := rel[id]
	if !ok || stat.Samples < reliabilityMinSamples {
		return reliabilityNeutralScore
	}
	score := 100 * stat.SuccessRate
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// lowerIsBetter maps value onto [0,100] where the set minimum scores 100.
// A degenerate set (all equal) scores 100 for everyone.
func lowerIsBetter(value, min, max float64) float64 {
	if max == min {
		return 100
	}
	return 100 * (max - value) / (max - min)
}

// higherIsBetter is the mirror image: the set maximum scores 100.
func higherIsBetter(value, min, max float64) float64 {
	if max == min {
		return 100
	}
	return 100 * (value - min) / (max - min)
}

func spread(values []float64) (min, max float64) {
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func explain(q *providers.ProviderQuote) string {
	return fmt.Sprintf("%d cents in %d min, %d/%d items fulfillable",
		q.Quote.TotalCents,
		q.Quote.EstimatedDeliveryMinutes,
		q.FulfillableItems(),
		len(q.ItemAvailability))
}
