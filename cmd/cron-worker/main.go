package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pantryloop/pantryloop-backend/internal/cron"
	"github.com/pantryloop/pantryloop-backend/internal/outcomes"
	"github.com/pantryloop/pantryloop-backend/internal/tuning"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db"
	"github.com/pantryloop/pantryloop-backend/pkg/instance"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/metrics"
	"github.com/pantryloop/pantryloop-backend/pkg/migrate"
	"github.com/pantryloop/pantryloop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outcomesRepo := outcomes.NewRepository(dbClient.DB())
	outcomesService, err := outcomes.NewService(outcomesRepo, nil, cfg.Tuning, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create outcomes service", err)
		os.Exit(1)
	}

	tuningService, err := tuning.NewService(tuning.NewRepository(dbClient.DB()), outcomesService, outcomesRepo, cfg.Tuning, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create tuning service", err)
		os.Exit(1)
	}

	rollupJob, err := cron.NewMetricsRollupJob(cron.MetricsRollupJobParams{
		Logger:   logg,
		Outcomes: outcomesService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rollup job", err)
		os.Exit(1)
	}

	tuningJob, err := cron.NewWeightTuningJob(cron.WeightTuningJobParams{
		Logger: logg,
		Tuning: tuningService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tuning job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Tuning.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	// Rollup runs before tuning so each adjustment cycle sees the freshest
	// daily metrics.
	registry := cron.NewRegistry(rollupJob, tuningJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Tuning.RollupInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Tuning.RollupInterval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}
