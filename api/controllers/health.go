package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pantryloop/pantryloop-backend/api/responses"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/redis"
)

const (
	envHeader         = "X-Pantryloop-Env"
	readyCheckTimeout = 5 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the backing stores answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db unavailable").
						WithDetails(map[string]string{"dependency": "db"}))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").
						WithDetails(map[string]string{"dependency": "redis"}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
