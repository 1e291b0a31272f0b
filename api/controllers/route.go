package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/api/middleware"
	"github.com/pantryloop/pantryloop-backend/api/responses"
	"github.com/pantryloop/pantryloop-backend/api/validators"
	"github.com/pantryloop/pantryloop-backend/internal/providers"
	"github.com/pantryloop/pantryloop-backend/internal/routing"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// RouteOrderBody is the inbound payload from the checkout orchestrator. The
// routing service revalidates item and address semantics.
type RouteOrderBody struct {
	UserID      *uuid.UUID                `json:"userId"`
	Items       []providers.RequestedItem `json:"items" validate:"required,min=1"`
	Location    types.Address             `json:"location"`
	Preferences *routing.OrderPreferences `json:"preferences,omitempty"`
}

type routeFailureEntry struct {
	ProviderID enums.ProviderID `json:"providerId"`
	Error      string           `json:"error"`
}

type routeFailureEnvelope struct {
	Success  bool                `json:"success"`
	Provider *providers.Provider `json:"provider"`
	Errors   []routeFailureEntry `json:"errors"`
}

// RouteOrder quotes the cart across the enabled fleet and returns the
// winning provider, or the per-provider failure set when nobody could quote.
func RouteOrder(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "routing service unavailable"))
			return
		}

		var body RouteOrderBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.RouteOrder(r.Context(), routing.RouteOrderRequest{
			RequestID:   middleware.RequestIDFromContext(r.Context()),
			UserID:      body.UserID,
			Items:       body.Items,
			Location:    body.Location,
			Preferences: body.Preferences,
		})
		if err != nil {
			var failure *routing.RouterFailure
			if errors.As(err, &failure) {
				writeRouterFailure(r.Context(), logg, w, failure)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

func writeRouterFailure(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, failure *routing.RouterFailure) {
	entries := make([]routeFailureEntry, 0, len(failure.Failures))
	for _, f := range failure.Failures {
		entries = append(entries, routeFailureEntry{ProviderID: f.ProviderID, Error: f.Message})
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"decision_id":         failure.DecisionID.String(),
			"attempted_providers": len(failure.AttemptedProviders),
		})
		logg.Error(ctx, "request.error", failure)
	}

	responses.WriteJSON(w, http.StatusBadGateway, routeFailureEnvelope{
		Success: false,
		Errors:  entries,
	})
}
