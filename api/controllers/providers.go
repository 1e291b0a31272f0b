package controllers

import (
	"net/http"

	"github.com/pantryloop/pantryloop-backend/api/responses"
	"github.com/pantryloop/pantryloop-backend/internal/providers"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
)

// ProviderSource lists the enabled provider fleet. Satisfied by
// providers.Registry.
type ProviderSource interface {
	EnabledSorted() []providers.ProviderConfig
}

// ListProviders returns the enabled provider configs in priority order.
func ListProviders(source ProviderSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "provider registry unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"providers": source.EnabledSorted()})
	}
}
