package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/pantryloop/pantryloop-backend/pkg/logger"
)

// defaultRollupLookback re-covers the previous UTC day plus the current one,
// so a cycle that lands just after midnight still refreshes yesterday's rows.
const defaultRollupLookback = 48 * time.Hour

type MetricsRollupJobParams struct {
	Logger   *logger.Logger
	Outcomes rollupRunner
	Lookback time.Duration
}

type rollupRunner interface {
	RollupWindow(ctx context.Context, from, to time.Time) (int, error)
}

func NewMetricsRollupJob(params MetricsRollupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outcomes == nil {
		return nil, fmt.Errorf("outcomes service required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultRollupLookback
	}
	return &metricsRollupJob{
		logg:     params.Logger,
		outcomes: params.Outcomes,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

type metricsRollupJob struct {
	logg     *logger.Logger
	outcomes rollupRunner
	lookback time.Duration
	now      func() time.Time
}

func (j *metricsRollupJob) Name() string { return "provider-metrics-rollup" }

func (j *metricsRollupJob) Run(ctx context.Context) error {
	to := j.now().UTC()
	from := to.Add(-j.lookback)
	written, err := j.outcomes.RollupWindow(ctx, from, to)
	if err != nil {
		return fmt.Errorf("provider metrics rollup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"window_start": from,
		"window_end":   to,
		"rows_written": written,
	})
	j.logg.Info(logCtx, "provider metrics rollup complete")
	return nil
}
