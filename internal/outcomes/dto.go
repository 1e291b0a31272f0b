package outcomes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// IngestInput is one reported fulfillment outcome. It arrives on the
// outcomes subscription as the event payload and is keyed by OrderID, so
// replays of the same order are absorbed without a second row.
type IngestInput struct {
	OrderID               uuid.UUID        `json:"orderId"`
	DecisionID            *uuid.UUID       `json:"decisionId,omitempty"`
	ProviderID            enums.ProviderID `json:"providerId"`
	WasSuccessful         bool             `json:"wasSuccessful"`
	WasCancelled          bool             `json:"wasCancelled"`
	WasSplitOrder         bool             `json:"wasSplitOrder"`
	UsedFallback          bool             `json:"usedFallback"`
	EstimatedMinutes      *int             `json:"estimatedMinutes,omitempty"`
	ActualDeliveryMinutes *int             `json:"actualDeliveryMinutes,omitempty"`
	ItemsOrdered          int              `json:"itemsOrdered"`
	ItemsDelivered        int              `json:"itemsDelivered"`
	TotalValueCents       *int             `json:"totalValueCents,omitempty"`
	CommissionRate        *float64         `json:"commissionRate,omitempty"`
	UserRating            *int             `json:"userRating,omitempty"`
	Issues                []string         `json:"issues,omitempty"`
	Raw                   json.RawMessage  `json:"raw,omitempty"`
	OccurredAt            time.Time        `json:"occurredAt"`
}

// WindowStats aggregates the daily rollups inside one tuning window.
type WindowStats struct {
	TotalOrders      int
	SuccessfulOrders int
	CancelledOrders  int
	OnTimeOrders     int
	ItemsOrdered     int
	ItemsDelivered   int
}

// OnTimeRate is the share of orders delivered within their estimate.
func (w WindowStats) OnTimeRate() float64 {
	if w.TotalOrders == 0 {
		return 0
	}
	return float64(w.OnTimeOrders) / float64(w.TotalOrders)
}

// CancellationRate is the share of orders cancelled before fulfillment.
func (w WindowStats) CancellationRate() float64 {
	if w.TotalOrders == 0 {
		return 0
	}
	return float64(w.CancelledOrders) / float64(w.TotalOrders)
}

// FulfillmentRate is the share of requested items actually delivered.
func (w WindowStats) FulfillmentRate() float64 {
	if w.ItemsOrdered == 0 {
		return 0
	}
	return float64(w.ItemsDelivered) / float64(w.ItemsOrdered)
}
