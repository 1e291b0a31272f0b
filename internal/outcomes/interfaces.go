package outcomes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/pantryloop-backend/internal/routing"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// Repository defines persistence for outcome rows and the per-day provider
// rollups derived from them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOutcome(ctx context.Context, outcome *models.OrderOutcome) error
	FindOutcomeByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderOutcome, error)
	ListOutcomesBetween(ctx context.Context, from, to time.Time) ([]models.OrderOutcome, error)
	CountOutcomesBetween(ctx context.Context, from, to time.Time) (int64, error)
	UpsertProviderMetric(ctx context.Context, metric *models.ProviderMetric) error
	ListMetricsBetween(ctx context.Context, from, to time.Time) ([]models.ProviderMetric, error)
}

// Service ingests post-fulfillment outcomes and maintains the rollups the
// router and tuning loop read.
type Service interface {
	IngestOutcome(ctx context.Context, input IngestInput) (*models.OrderOutcome, error)
	RollupWindow(ctx context.Context, from, to time.Time) (int, error)
	ReliabilityStats(ctx context.Context) (map[enums.ProviderID]routing.ReliabilityStat, error)
	WindowStats(ctx context.Context, from, to time.Time) (WindowStats, error)
}
