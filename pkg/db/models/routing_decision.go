package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// RoutingDecision is the audit row written once per routing decision after it
// reaches a terminal state. Read-only thereafter.
type RoutingDecision struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RequestID          string                 `gorm:"column:request_id;not null;default:''"`
	UserID             *uuid.UUID             `gorm:"column:user_id;type:uuid"`
	State              enums.DecisionState    `gorm:"column:state;type:text;not null"`
	OptimizeFor        enums.OptimizeFor      `gorm:"column:optimize_for;type:text;not null;default:'balanced'"`
	Weights            types.Weights          `gorm:"column:weights;type:jsonb;not null"`
	DeliveryAddress    *types.Address         `gorm:"column:delivery_address;type:address_t"`
	ItemsRequested     int                    `gorm:"column:items_requested;not null"`
	AttemptedProviders pq.StringArray         `gorm:"column:attempted_providers;type:text[]"`
	Scores             types.ProviderScores   `gorm:"column:scores;type:jsonb"`
	Quotes             types.QuoteSummaries   `gorm:"column:quotes;type:jsonb"`
	Errors             types.ProviderFailures `gorm:"column:errors;type:jsonb"`
	SelectedProvider   *enums.ProviderID      `gorm:"column:selected_provider;type:text"`
	SelectedTotalCents *int                   `gorm:"column:selected_total_cents"`
	LatencyMs          int                    `gorm:"column:latency_ms;not null;default:0"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
}
