package outcomes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
)

type rollupKey struct {
	provider enums.ProviderID
	day      time.Time
}

type rollupAccumulator struct {
	totalOrders      int
	successfulOrders int
	cancelledOrders  int
	onTimeOrders     int
	fallbackOrders   int
	splitOrders      int
	itemsOrdered     int
	itemsDelivered   int
	deliverySamples  int
	deliveryMinutes  int
	gmvCents         int64
	revenueCents     decimal.Decimal
}

// RollupWindow recomputes the per-provider daily rollups from the outcome
// rows with occurred_at in [from, to). Existing rows for the touched days
// are replaced, so re-running a window is safe. Returns the number of rows
// written.
func (s *service) RollupWindow(ctx context.Context, from, to time.Time) (int, error) {
	rows, err := s.repo.ListOutcomesBetween(ctx, from, to)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outcomes for rollup")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	groups := make(map[rollupKey]*rollupAccumulator)
	for i := range rows {
		accumulate(groups, &rows[i])
	}

	keys := make([]rollupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].day.Equal(keys[j].day) {
			return keys[i].day.Before(keys[j].day)
		}
		return keys[i].provider < keys[j].provider
	})

	written := 0
	for _, key := range keys {
		metric := buildMetric(key, groups[key])
		if err := s.repo.UpsertProviderMetric(ctx, metric); err != nil {
			return written, pkgerrors.Wrap(pkgerrors.CodeDependency, err,
				fmt.Sprintf("upsert rollup for %s on %s", key.provider, key.day.Format("2006-01-02")))
		}
		written++
	}

	s.logg.Info(ctx, fmt.Sprintf("rolled up %d outcomes into %d provider-day rows", len(rows), written))
	return written, nil
}

func accumulate(groups map[rollupKey]*rollupAccumulator, outcome *models.OrderOutcome) {
	key := rollupKey{provider: outcome.ProviderID, day: dayOf(outcome.OccurredAt)}
	acc := groups[key]
	if acc == nil {
		acc = &rollupAccumulator{}
		groups[key] = acc
	}

	acc.totalOrders++
	if outcome.WasSuccessful {
		acc.successfulOrders++
	}
	if outcome.WasCancelled {
		acc.cancelledOrders++
	}
	if outcome.UsedFallback {
		acc.fallbackOrders++
	}
	if outcome.WasSplitOrder {
		acc.splitOrders++
	}
	acc.itemsOrdered += outcome.ItemsOrdered
	acc.itemsDelivered += outcome.ItemsDelivered

	if outcome.EstimatedMinutes != nil && outcome.ActualDeliveryMinutes != nil &&
		*outcome.ActualDeliveryMinutes <= *outcome.EstimatedMinutes {
		acc.onTimeOrders++
	}
	if outcome.ActualDeliveryMinutes != nil {
		acc.deliverySamples++
		acc.deliveryMinutes += *outcome.ActualDeliveryMinutes
	}

	if outcome.WasSuccessful && outcome.TotalValueCents != nil {
		value := int64(*outcome.TotalValueCents)
		acc.gmvCents += value
		if outcome.CommissionRate != nil {
			commission := decimal.NewFromFloat(*outcome.CommissionRate).
				Mul(decimal.NewFromInt(value))
			acc.revenueCents = acc.revenueCents.Add(commission)
		}
	}
}

func buildMetric(key rollupKey, acc *rollupAccumulator) *models.ProviderMetric {
	metric := &models.ProviderMetric{
		ProviderID:       key.provider,
		Day:              key.day,
		TotalOrders:      acc.totalOrders,
		SuccessfulOrders: acc.successfulOrders,
		CancelledOrders:  acc.cancelledOrders,
		OnTimeOrders:     acc.onTimeOrders,
		ItemsOrdered:     acc.itemsOrdered,
		ItemsDelivered:   acc.itemsDelivered,
		TotalGMVCents:    acc.gmvCents,
		OurRevenueCents:  acc.revenueCents.Round(0).IntPart(),
	}
	if acc.deliverySamples > 0 {
		avg := float64(acc.deliveryMinutes) / float64(acc.deliverySamples)
		metric.AvgDeliveryTimeMinutes = &avg
	}
	if acc.totalOrders > 0 {
		metric.FallbackRate = float64(acc.fallbackOrders) / float64(acc.totalOrders)
		metric.SplitOrderRate = float64(acc.splitOrders) / float64(acc.totalOrders)
	}
	return metric
}
