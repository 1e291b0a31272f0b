package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// WeightAdjustment is the append-only audit trail of the tuning loop. The
// currently active weights are the latest row's NewWeights.
type WeightAdjustment struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OldWeights       types.Weights          `gorm:"column:old_weights;type:jsonb;not null"`
	NewWeights       types.Weights          `gorm:"column:new_weights;type:jsonb;not null"`
	PerformanceDelta types.PerformanceDelta `gorm:"column:performance_delta;type:jsonb;not null"`
	Reason           string                 `gorm:"column:reason;not null"`
	OutcomeCount     int                    `gorm:"column:outcome_count;not null;default:0"`
	WindowDays       int                    `gorm:"column:window_days;not null;default:0"`
	AppliedAt        time.Time              `gorm:"column:applied_at;not null"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
}
