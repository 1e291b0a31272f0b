package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pantryloop/pantryloop-backend/api/routes"
	"github.com/pantryloop/pantryloop-backend/internal/outcomes"
	"github.com/pantryloop/pantryloop-backend/internal/providers"
	"github.com/pantryloop/pantryloop-backend/internal/routing"
	"github.com/pantryloop/pantryloop-backend/internal/tuning"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/metrics"
	"github.com/pantryloop/pantryloop-backend/pkg/migrate"
	"github.com/pantryloop/pantryloop-backend/pkg/redis"
	"github.com/pantryloop/pantryloop-backend/pkg/telemetry"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	emitter := telemetry.New(telemetry.Options{ServiceName: "api"})

	registry, err := providers.NewRegistry(cfg.Providers, logg, emitter)
	if err != nil {
		logg.Error(context.Background(), "failed to build provider registry", err)
		os.Exit(1)
	}

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

	routingService, err := routing.NewService(routing.ServiceParams{
		Adapters:      registry,
		Decisions:     routing.NewRepository(dbClient.DB()),
		Weights:       tuningService,
		Metrics:       outcomesService,
		Token:         cfg.Token,
		Router:        cfg.Router,
		Logger:        logg,
		Emitter:       emitter,
		RouterMetrics: metrics.NewRouterMetrics(prometheus.DefaultRegisterer),
		ProviderCalls: metrics.NewProviderCallMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create routing service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routingService, tuningService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
