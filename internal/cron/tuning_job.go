package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
)

type WeightTuningJobParams struct {
	Logger *logger.Logger
	Tuning adjustmentRunner
}

type adjustmentRunner interface {
	RunAdjustment(ctx context.Context, now time.Time) (*models.WeightAdjustment, error)
}

func NewWeightTuningJob(params WeightTuningJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tuning == nil {
		return nil, fmt.Errorf("tuning service required")
	}
	return &weightTuningJob{
		logg:   params.Logger,
		tuning: params.Tuning,
		now:    time.Now,
	}, nil
}

type weightTuningJob struct {
	logg   *logger.Logger
	tuning adjustmentRunner
	now    func() time.Time
}

func (j *weightTuningJob) Name() string { return "weight-tuning" }

func (j *weightTuningJob) Run(ctx context.Context) error {
	adjustment, err := j.tuning.RunAdjustment(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("weight tuning: %w", err)
	}
	if adjustment == nil {
		j.logg.Info(ctx, "weight tuning skipped this cycle")
		return nil
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"adjustment_id": adjustment.ID.String(),
		"outcome_count": adjustment.OutcomeCount,
		"max_delta":     adjustment.OldWeights.MaxDelta(adjustment.NewWeights),
		"reason":        adjustment.Reason,
	})
	j.logg.Info(logCtx, "weight tuning committed an adjustment")
	return nil
}
