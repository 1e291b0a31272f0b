package tuning

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
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/pagination"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

type service struct {
	repo    Repository
	stats   StatsSource
	counter OutcomeCounter
	cfg     config.TuningConfig
	logg    *logger.Logger
}

// NewService wires the weight tuning loop.
func NewService(repo Repository, stats StatsSource, counter OutcomeCounter, cfg config.TuningConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tuning repository is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats source is required")
	}
	if counter == nil {
		return nil, fmt.Errorf("outcome counter is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.MaxStepPerCycle <= 0 {
		cfg.MaxStepPerCycle = 0.05
	}
	if cfg.MinOutcomes <= 0 {
		cfg.MinOutcomes = 10
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 14
	}
	return &service{repo: repo, stats: stats, counter: counter, cfg: cfg, logg: logg}, nil
}

// ActiveWeights returns the latest committed adjustment's NewWeights. The
// second return is false when no adjustment has ever been committed, in
// which case the router falls back to its built-in defaults.
func (s *service) ActiveWeights(ctx context.Context) (types.Weights, bool, error) {
	latest, err := s.repo.LatestAdjustment(ctx)
	switch {
	case err == nil:
		return latest.NewWeights, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return types.Weights{}, false, nil
	default:
		return types.Weights{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest weight adjustment")
	}
}

// RunAdjustment executes one tuning cycle at the given instant. It compares
// the trailing window against the one before it and, when performance
// degraded on enough volume, commits a capped, renormalized adjustment.
// Returns nil without error when the cycle decides to leave the weights
// alone.
func (s *service) RunAdjustment(ctx context.Context, now time.Time) (*models.WeightAdjustment, error) {
	now = now.UTC()

	if s.cfg.AdjustInterval > 0 {
		latest, err := s.repo.LatestAdjustment(ctx)
		switch {
		case err == nil:
			if age := now.Sub(latest.AppliedAt); age < s.cfg.AdjustInterval {
				s.logg.Info(ctx, fmt.Sprintf("tuning skipped: last adjustment is %s old, interval is %s", age.Round(time.Minute), s.cfg.AdjustInterval))
				return nil, nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest weight adjustment")
		}
	}

	window := time.Duration(s.cfg.WindowDays) * 24 * time.Hour
	curFrom, curTo := now.Add(-window), now
	prevFrom, prevTo := now.Add(-2*window), now.Add(-window)

	curCount, err := s.counter.CountOutcomesBetween(ctx, curFrom, curTo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count current window outcomes")
	}
	if curCount < int64(s.cfg.MinOutcomes) {
		s.logg.Info(ctx, fmt.Sprintf("tuning skipped: %d outcomes in current window, need %d", curCount, s.cfg.MinOutcomes))
		return nil, nil
	}
	prevCount, err := s.counter.CountOutcomesBetween(ctx, prevFrom, prevTo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count prior window outcomes")
	}
	if prevCount < int64(s.cfg.MinOutcomes) {
		s.logg.Info(ctx, fmt.Sprintf("tuning skipped: %d outcomes in prior window, need %d", prevCount, s.cfg.MinOutcomes))
		return nil, nil
	}

	current, err := s.stats.WindowStats(ctx, curFrom, curTo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate current window")
	}
	previous, err := s.stats.WindowStats(ctx, prevFrom, prevTo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate prior window")
	}

	delta := types.PerformanceDelta{
		OnTimeRateDelta:       current.OnTimeRate() - previous.OnTimeRate(),
		CancellationRateDelta: current.CancellationRate() - previous.CancellationRate(),
		FulfillmentRateDelta:  current.FulfillmentRate() - previous.FulfillmentRate(),
	}

	old, err := s.currentWeights(ctx)
	if err != nil {
		return nil, err
	}

	p := proposeRaises(delta, s.cfg.MaxStepPerCycle)
	if p.empty() {
		s.logg.Info(ctx, "tuning skipped: performance stable or improving")
		return nil, nil
	}

	applied := applyRaises(old, p, s.cfg.MaxStepPerCycle)
	if applied.MaxDelta(old) < 1e-9 {
		s.logg.Info(ctx, "tuning skipped: proposal could not move any weight")
		return nil, nil
	}
	if err := applied.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjusted weights failed validation")
	}

	adjustment := &models.WeightAdjustment{
		ID:               uuid.New(),
		OldWeights:       old,
		NewWeights:       applied,
		PerformanceDelta: delta,
		Reason:           adjustmentReason(p, old, applied),
		OutcomeCount:     int(curCount),
		WindowDays:       s.cfg.WindowDays,
		AppliedAt:        now,
	}
	if err := s.repo.CreateAdjustment(ctx, adjustment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist weight adjustment")
	}

	s.logg.Info(ctx, fmt.Sprintf("committed weight adjustment: %s", adjustment.Reason))
	return adjustment, nil
}

// ListAdjustments pages through the audit trail, newest first.
func (s *service) ListAdjustments(ctx context.Context, params pagination.Params) ([]models.WeightAdjustment, string, error) {
	adjustments, next, err := s.repo.ListAdjustments(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list weight adjustments")
	}
	nextCursor := ""
	if next != nil {
		nextCursor = pagination.EncodeCursor(*next)
	}
	return adjustments, nextCursor, nil
}

func (s *service) currentWeights(ctx context.Context) (types.Weights, error) {
	weights, ok, err := s.ActiveWeights(ctx)
	if err != nil {
		return types.Weights{}, err
	}
	if !ok {
		return routing.DefaultWeights(), nil
	}
	return weights, nil
}
