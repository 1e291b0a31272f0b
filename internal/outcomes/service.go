package outcomes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/pantryloop-backend/internal/routing"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
)

type service struct {
	repo       Repository
	facts      *FactsWriter
	windowDays int
	logg       *logger.Logger
}

// NewService wires the outcome ingest pipeline. The facts writer is
// optional; pass nil when BigQuery is disabled.
func NewService(repo Repository, facts *FactsWriter, cfg config.TuningConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("outcomes repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = 14
	}
	return &service{
		repo:       repo,
		facts:      facts,
		windowDays: windowDays,
		logg:       logg,
	}, nil
}

// IngestOutcome validates and persists one reported outcome. A second report
// for the same order returns the stored row untouched, so upstream replays
// and redeliveries are harmless.
func (s *service) IngestOutcome(ctx context.Context, input IngestInput) (*models.OrderOutcome, error) {
	if err := validateIngestInput(input); err != nil {
		return nil, err
	}

	ctx = s.logg.WithField(ctx, "order_id", input.OrderID.String())

	existing, err := s.repo.FindOutcomeByOrderID(ctx, input.OrderID)
	switch {
	case err == nil:
		s.logg.Info(ctx, "outcome for order already recorded")
		return existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up existing outcome")
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	outcome := &models.OrderOutcome{
		ID:                    uuid.New(),
		OrderID:               input.OrderID,
		DecisionID:            input.DecisionID,
		ProviderID:            input.ProviderID,
		WasSuccessful:         input.WasSuccessful,
		WasCancelled:          input.WasCancelled,
		WasSplitOrder:         input.WasSplitOrder,
		UsedFallback:          input.UsedFallback,
		EstimatedMinutes:      input.EstimatedMinutes,
		ActualDeliveryMinutes: input.ActualDeliveryMinutes,
		ItemsOrdered:          input.ItemsOrdered,
		ItemsDelivered:        input.ItemsDelivered,
		TotalValueCents:       input.TotalValueCents,
		CommissionRate:        input.CommissionRate,
		UserRating:            input.UserRating,
		Issues:                input.Issues,
		Raw:                   input.Raw,
		OccurredAt:            occurredAt,
	}

	if err := s.repo.CreateOutcome(ctx, outcome); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order outcome")
	}

	s.streamFact(ctx, outcome)

	ctx = s.logg.WithProviderID(ctx, outcome.ProviderID.String())
	s.logg.Info(ctx, fmt.Sprintf("recorded outcome (successful=%t, cancelled=%t, %d/%d items)",
		outcome.WasSuccessful, outcome.WasCancelled, outcome.ItemsDelivered, outcome.ItemsOrdered))
	return outcome, nil
}

// streamFact mirrors the outcome into the warehouse. Failures are logged and
// swallowed; the Postgres row already committed.
func (s *service) streamFact(ctx context.Context, outcome *models.OrderOutcome) {
	if s.facts == nil {
		return
	}
	if err := s.facts.InsertOutcome(ctx, buildOutcomeFactRow(outcome)); err != nil {
		s.logg.Error(ctx, "stream outcome fact", err)
	}
}

// ReliabilityStats aggregates the rolled-up window into the per-provider
// success rates the router scores against.
func (s *service) ReliabilityStats(ctx context.Context) (map[enums.ProviderID]routing.ReliabilityStat, error) {
	now := time.Now().UTC()
	from := dayOf(now.AddDate(0, 0, -s.windowDays))
	to := dayOf(now).AddDate(0, 0, 1)

	rows, err := s.repo.ListMetricsBetween(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list provider metrics")
	}

	type tally struct {
		total      int
		successful int
	}
	tallies := make(map[enums.ProviderID]tally)
	for _, row := range rows {
		t := tallies[row.ProviderID]
		t.total += row.TotalOrders
		t.successful += row.SuccessfulOrders
		tallies[row.ProviderID] = t
	}

	stats := make(map[enums.ProviderID]routing.ReliabilityStat, len(tallies))
	for id, t := range tallies {
		if t.total == 0 {
			continue
		}
		stats[id] = routing.ReliabilityStat{
			SuccessRate: float64(t.successful) / float64(t.total),
			Samples:     t.total,
		}
	}
	return stats, nil
}

// WindowStats aggregates rollup rows between from and to for the tuning
// loop.
func (s *service) WindowStats(ctx context.Context, from, to time.Time) (WindowStats, error) {
	rows, err := s.repo.ListMetricsBetween(ctx, from, to)
	if err != nil {
		return WindowStats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list provider metrics")
	}

	var stats WindowStats
	for _, row := range rows {
		stats.TotalOrders += row.TotalOrders
		stats.SuccessfulOrders += row.SuccessfulOrders
		stats.CancelledOrders += row.CancelledOrders
		stats.OnTimeOrders += row.OnTimeOrders
		stats.ItemsOrdered += row.ItemsOrdered
		stats.ItemsDelivered += row.ItemsDelivered
	}
	return stats, nil
}

func validateIngestInput(input IngestInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	if !input.ProviderID.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown provider %q", input.ProviderID))
	}
	if input.ItemsOrdered < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "itemsOrdered must be at least 1")
	}
	if input.ItemsDelivered < 0 || input.ItemsDelivered > input.ItemsOrdered {
		return pkgerrors.New(pkgerrors.CodeValidation, "itemsDelivered must be between 0 and itemsOrdered")
	}
	if input.WasSuccessful && input.WasCancelled {
		return pkgerrors.New(pkgerrors.CodeValidation, "an outcome cannot be both successful and cancelled")
	}
	if input.UserRating != nil && (*input.UserRating < 1 || *input.UserRating > 5) {
		return pkgerrors.New(pkgerrors.CodeValidation, "userRating must be between 1 and 5")
	}
	if input.EstimatedMinutes != nil && *input.EstimatedMinutes < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "estimatedMinutes cannot be negative")
	}
	if input.ActualDeliveryMinutes != nil && *input.ActualDeliveryMinutes < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "actualDeliveryMinutes cannot be negative")
	}
	if input.TotalValueCents != nil && *input.TotalValueCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "totalValueCents cannot be negative")
	}
	if input.CommissionRate != nil && (*input.CommissionRate < 0 || *input.CommissionRate > 1) {
		return pkgerrors.New(pkgerrors.CodeValidation, "commissionRate must be between 0 and 1")
	}
	return nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
