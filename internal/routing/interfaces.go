package routing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/pantryloop-backend/internal/providers"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// Service routes one order request across the provider fleet.
type Service interface {
	RouteOrder(ctx context.Context, req RouteOrderRequest) (*RouteOrderResponse, error)
}

// Repository defines persistence operations for routing decision rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDecision(ctx context.Context, decision *models.RoutingDecision) error
	FindDecisionByID(ctx context.Context, id uuid.UUID) (*models.RoutingDecision, error)
}

// AdapterSource is the provider fleet the router fans out to. Satisfied by
// providers.Registry.
type AdapterSource interface {
	Adapter(id enums.ProviderID) (providers.Adapter, bool)
	EnabledSorted() []providers.ProviderConfig
}

// WeightsSource reports the currently active scoring weights. The second
// return is false when no tuning adjustment has been committed yet.
type WeightsSource interface {
	ActiveWeights(ctx context.Context) (types.Weights, bool, error)
}

// MetricsSource reports trailing-window reliability per provider.
type MetricsSource interface {
	ReliabilityStats(ctx context.Context) (map[enums.ProviderID]ReliabilityStat, error)
}
