package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// OrderOutcome records the post-fulfillment truth for one routed order.
// Rows are append-only; one per order.
type OrderOutcome struct {
	ID                    uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID        `gorm:"column:order_id;type:uuid;not null;unique"`
	DecisionID            *uuid.UUID       `gorm:"column:decision_id;type:uuid"`
	ProviderID            enums.ProviderID `gorm:"column:provider_id;type:text;not null"`
	WasSuccessful         bool             `gorm:"column:was_successful;not null"`
	WasCancelled          bool             `gorm:"column:was_cancelled;not null;default:false"`
	WasSplitOrder         bool             `gorm:"column:was_split_order;not null;default:false"`
	UsedFallback          bool             `gorm:"column:used_fallback;not null;default:false"`
	EstimatedMinutes      *int             `gorm:"column:estimated_minutes"`
	ActualDeliveryMinutes *int             `gorm:"column:actual_delivery_minutes"`
	ItemsOrdered          int              `gorm:"column:items_ordered;not null"`
	ItemsDelivered        int              `gorm:"column:items_delivered;not null;default:0"`
	TotalValueCents       *int             `gorm:"column:total_value_cents"`
	CommissionRate        *float64         `gorm:"column:commission_rate"`
	UserRating            *int             `gorm:"column:user_rating"`
	Issues                pq.StringArray   `gorm:"column:issues;type:text[]"`
	Raw                   json.RawMessage  `gorm:"column:raw;type:jsonb"`
	OccurredAt            time.Time        `gorm:"column:occurred_at;not null"`
	CreatedAt             time.Time        `gorm:"column:created_at;autoCreateTime"`
}
