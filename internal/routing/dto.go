package routing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pantryloop/pantryloop-backend/internal/providers"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// OrderPreferences tunes one routing decision. All fields are optional.
type OrderPreferences struct {
	// OptimizeFor selects a weight preset; empty means balanced.
	OptimizeFor enums.OptimizeFor `json:"optimizeFor,omitempty"`
	// Weights overrides the preset entirely when set. Must sum to 1.0.
	Weights *types.Weights `json:"weights,omitempty"`
	// MaxDeliveryMinutes and MaxFeesCents exclude quotes from winning when
	// exceeded. Quotes over the limit still appear as alternatives.
	MaxDeliveryMinutes *int `json:"maxDeliveryMinutes,omitempty"`
	MaxFeesCents       *int `json:"maxFeesCents,omitempty"`
	// PreferredProviders restricts the fan-out to a subset of the enabled
	// fleet.
	PreferredProviders []enums.ProviderID `json:"preferredProviders,omitempty"`
	// AllowSplitOrders is accepted and recorded but split fulfillment is
	// not implemented; the whole cart always routes to one provider.
	AllowSplitOrders    bool                      `json:"allowSplitOrders,omitempty"`
	DeliveryWindow      *providers.DeliveryWindow `json:"deliveryWindow,omitempty"`
	SpecialInstructions string                    `json:"specialInstructions,omitempty"`
}

// RouteOrderRequest is the inbound contract from the checkout orchestrator.
type RouteOrderRequest struct {
	RequestID   string
	UserID      *uuid.UUID
	Items       []providers.RequestedItem
	Location    types.Address
	Preferences *OrderPreferences
}

// ScoredQuote pairs a provider quote with its score for one decision. The
// set is discarded once the response is built.
type ScoredQuote struct {
	Quote     *providers.ProviderQuote
	Score     float64
	Breakdown types.ScoreBreakdown
}

// AlternativeProvider is the loser-set projection included in the response.
type AlternativeProvider struct {
	ProviderID               enums.ProviderID `json:"providerId"`
	ProviderName             string           `json:"providerName"`
	TotalCents               int              `json:"totalCents"`
	EstimatedDeliveryMinutes int              `json:"estimatedDeliveryMinutes"`
	Score                    float64          `json:"score"`
}

// RouteOrderResponse carries the selected quote, its rationale, and the
// confirmation token binding the selection.
type RouteOrderResponse struct {
	Success           bool                          `json:"success"`
	DecisionID        uuid.UUID                     `json:"decisionId"`
	Provider          *providers.Provider           `json:"provider"`
	ProviderID        enums.ProviderID              `json:"providerId"`
	Store             *providers.Store              `json:"store,omitempty"`
	Cart              []providers.CartItem          `json:"cart"`
	Quote             providers.Quote               `json:"quote"`
	ItemAvailability  []providers.ItemAvailability  `json:"itemAvailability"`
	ScoreBreakdown    types.ScoreBreakdown          `json:"scoreBreakdown"`
	Alternatives      []AlternativeProvider         `json:"alternatives"`
	ConfirmationToken string                        `json:"confirmationToken"`
	AffiliateURL      string                        `json:"affiliateUrl,omitempty"`
	Message           string                        `json:"message,omitempty"`
}

// RouterFailure is returned when every attempted provider failed. The quote
// never silently degrades to stale data; callers see the full failure set.
type RouterFailure struct {
	DecisionID         uuid.UUID
	AttemptedProviders []enums.ProviderID
	Failures           types.ProviderFailures
	cause              error
}

func newRouterFailure(decisionID uuid.UUID, attempted []enums.ProviderID, failures types.ProviderFailures, causes []error) *RouterFailure {
	return &RouterFailure{
		DecisionID:         decisionID,
		AttemptedProviders: attempted,
		Failures:           failures,
		cause:              multierr.Combine(causes...),
	}
}

func (f *RouterFailure) Error() string {
	names := make([]string, len(f.AttemptedProviders))
	for i, id := range f.AttemptedProviders {
		names[i] = id.String()
	}
	return fmt.Sprintf("all providers failed (%s)", strings.Join(names, ", "))
}

func (f *RouterFailure) Unwrap() error {
	return f.cause
}
