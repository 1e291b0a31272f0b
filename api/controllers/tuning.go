package controllers

import (
	"net/http"
	"strings"

	"github.com/pantryloop/pantryloop-backend/api/responses"
	"github.com/pantryloop/pantryloop-backend/api/validators"
	"github.com/pantryloop/pantryloop-backend/internal/tuning"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/pagination"
)

type weightAdjustmentList struct {
	Items  []models.WeightAdjustment `json:"items"`
	Cursor string                    `json:"cursor,omitempty"`
}

// ListWeightAdjustments returns the adjustment audit trail, newest first.
func ListWeightAdjustments(svc tuning.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tuning service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Limit: limit}
		if cursor := strings.TrimSpace(r.URL.Query().Get("cursor")); cursor != "" {
			params.Cursor = cursor
		}

		items, next, err := svc.ListAdjustments(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, weightAdjustmentList{Items: items, Cursor: next})
	}
}
