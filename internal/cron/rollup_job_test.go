package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pantryloop/pantryloop-backend/pkg/logger"
)

func TestMetricsRollupJobCoversLookbackWindow(t *testing.T) {
	now := time.Date(2026, 2, 14, 3, 0, 0, 0, time.UTC)
	runner := &fakeRollupRunner{written: 7}
	job := newMetricsRollupJob(t, runner, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if runner.called != 1 {
		t.Fatalf("expected runner called once, got %d", runner.called)
	}
	if !runner.lastTo.Equal(now) {
		t.Fatalf("expected window end %s, got %s", now, runner.lastTo)
	}
	expectedFrom := now.Add(-defaultRollupLookback)
	if !runner.lastFrom.Equal(expectedFrom) {
		t.Fatalf("expected window start %s, got %s", expectedFrom, runner.lastFrom)
	}
}

func TestMetricsRollupJobHonorsCustomLookback(t *testing.T) {
	now := time.Date(2026, 2, 14, 3, 0, 0, 0, time.UTC)
	runner := &fakeRollupRunner{}
	job := newMetricsRollupJob(t, runner, 6*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedFrom := now.Add(-6 * time.Hour)
	if !runner.lastFrom.Equal(expectedFrom) {
		t.Fatalf("expected window start %s, got %s", expectedFrom, runner.lastFrom)
	}
}

func TestMetricsRollupJobPropagatesErrors(t *testing.T) {
	runner := &fakeRollupRunner{err: errors.New("boom")}
	job := newMetricsRollupJob(t, runner, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newMetricsRollupJob(t *testing.T, runner *fakeRollupRunner, lookback time.Duration) *metricsRollupJob {
	t.Helper()
	jobIface, err := NewMetricsRollupJob(MetricsRollupJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Outcomes: runner,
		Lookback: lookback,
	})
	if err != nil {
		t.Fatalf("NewMetricsRollupJob: %v", err)
	}
	job, ok := jobIface.(*metricsRollupJob)
	if !ok {
		t.Fatalf("expected metricsRollupJob, got %T", jobIface)
	}
	return job
}

type fakeRollupRunner struct {
	lastFrom time.Time
	lastTo   time.Time
	written  int
	err      error
	called   int
}

func (f *fakeRollupRunner) RollupWindow(ctx context.Context, from, to time.Time) (int, error) {
	f.called++
	f.lastFrom = from
	f.lastTo = to
	if f.err != nil {
		return 0, f.err
	}
	return f.written, nil
}
