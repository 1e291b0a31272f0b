package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// ProviderMetric is the per-provider, per-day rollup recomputed from
// OrderOutcome history. Never hand-edited; the rollup job replaces rows.
type ProviderMetric struct {
	ID                     uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID             enums.ProviderID `gorm:"column:provider_id;type:text;not null;uniqueIndex:provider_metrics_provider_id_day_key"`
	Day                    time.Time        `gorm:"column:day;type:date;not null;uniqueIndex:provider_metrics_provider_id_day_key"`
	TotalOrders            int              `gorm:"column:total_orders;not null;default:0"`
	SuccessfulOrders       int              `gorm:"column:successful_orders;not null;default:0"`
	CancelledOrders        int              `gorm:"column:cancelled_orders;not null;default:0"`
	OnTimeOrders           int              `gorm:"column:on_time_orders;not null;default:0"`
	ItemsOrdered           int              `gorm:"column:items_ordered;not null;default:0"`
	ItemsDelivered         int              `gorm:"column:items_delivered;not null;default:0"`
	AvgDeliveryTimeMinutes *float64         `gorm:"column:avg_delivery_time_minutes"`
	TotalGMVCents          int64            `gorm:"column:total_gmv_cents;not null;default:0"`
	OurRevenueCents        int64            `gorm:"column:our_revenue_cents;not null;default:0"`
	FallbackRate           float64          `gorm:"column:fallback_rate;not null;default:0"`
	SplitOrderRate         float64          `gorm:"column:split_order_rate;not null;default:0"`
	CreatedAt              time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
