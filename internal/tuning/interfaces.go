package tuning

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pantryloop/pantryloop-backend/internal/outcomes"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/pagination"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// Repository persists the append-only weight adjustment trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAdjustment(ctx context.Context, adjustment *models.WeightAdjustment) error
	LatestAdjustment(ctx context.Context) (*models.WeightAdjustment, error)
	ListAdjustments(ctx context.Context, params pagination.Params) ([]models.WeightAdjustment, *pagination.Cursor, error)
}

// StatsSource supplies aggregated window performance. Satisfied by
// outcomes.Service.
type StatsSource interface {
	WindowStats(ctx context.Context, from, to time.Time) (outcomes.WindowStats, error)
}

// OutcomeCounter reports raw outcome volume for the adjustment gates.
// Satisfied by outcomes.Repository.
type OutcomeCounter interface {
	CountOutcomesBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// Service runs the weight tuning loop and serves the active vector.
type Service interface {
	ActiveWeights(ctx context.Context) (types.Weights, bool, error)
	RunAdjustment(ctx context.Context, now time.Time) (*models.WeightAdjustment, error)
	ListAdjustments(ctx context.Context, params pagination.Params) ([]models.WeightAdjustment, string, error)
}
