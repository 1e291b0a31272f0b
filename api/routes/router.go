package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pantryloop/pantryloop-backend/api/controllers"
	"github.com/pantryloop/pantryloop-backend/api/middleware"
	"github.com/pantryloop/pantryloop-backend/internal/routing"
	"github.com/pantryloop/pantryloop-backend/internal/tuning"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	providerSource controllers.ProviderSource,
	routingService routing.Service,
	tuningService tuning.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/orders/route", controllers.RouteOrder(routingService, logg))
		r.Get("/providers", controllers.ListProviders(providerSource, logg))
		r.Get("/tuning/adjustments", controllers.ListWeightAdjustments(tuningService, logg))
	})

	return r
}
