package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pantryloop/pantryloop-backend/internal/outcomes"
	"github.com/pantryloop/pantryloop-backend/internal/outcomes/consumer"
	"github.com/pantryloop/pantryloop-backend/pkg/bigquery"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db"
	"github.com/pantryloop/pantryloop-backend/pkg/instance"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/metrics"
	"github.com/pantryloop/pantryloop-backend/pkg/migrate"
	"github.com/pantryloop/pantryloop-backend/pkg/pubsub"
	"github.com/pantryloop/pantryloop-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "outcome-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "outcome-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database client", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	var facts *outcomes.FactsWriter
	if cfg.BigQuery.Enabled {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery client", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "failed to close bigquery client", err)
			}
		}()

		facts, err = outcomes.NewFactsWriter(bqClient, bqClient.OutcomeFactsTable(), outcomes.FactRetryPolicy{})
		requireResource(ctx, logg, "outcome facts writer", err)
	}

	subscription := pubsubClient.OutcomesSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "outcomes subscription", errors.New("subscription not configured"))
	}

	manager, err := redis.NewIdempotencyManager(redisClient, cfg.PubSub.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	outcomesService, err := outcomes.NewService(outcomes.NewRepository(dbClient.DB()), facts, cfg.Tuning, logg)
	requireResource(ctx, logg, "outcomes service", err)

	worker, err := consumer.NewConsumer(
		subscription,
		outcomesService,
		manager,
		metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	requireResource(ctx, logg, "outcomes consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"instance":     instance.GetID(),
		"subscription": cfg.PubSub.OutcomesSubscription,
	})
	logg.Info(runCtx, "outcome worker ready")

	if err := worker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "outcome worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
