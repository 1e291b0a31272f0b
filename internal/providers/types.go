package providers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// RequestedItem is one line of the shopping list to quote. IDs are
// client-assigned and unique within a request.
type RequestedItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit,omitempty"`
	Preferences string `json:"preferences,omitempty"`
}

// UserContext carries the upstream caller's identity through to providers
// that support account-linked quoting.
type UserContext struct {
	UserID uuid.UUID `json:"userId"`
}

// DeliveryWindow asks the provider to quote against a delivery slot.
type DeliveryWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QuoteRequest is the per-provider call payload. The router builds one per
// enabled provider from a single inbound order request.
type QuoteRequest struct {
	Items               []RequestedItem `json:"items"`
	ShippingAddress     types.Address   `json:"shippingAddress"`
	UserContext         *UserContext    `json:"userContext,omitempty"`
	DeliveryWindow      *DeliveryWindow `json:"deliveryWindow,omitempty"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
}

// Provider is the identity half of a ProviderQuote.
type Provider struct {
	ID           enums.ProviderID `json:"id"`
	Name         string           `json:"name"`
	BasePriority int              `json:"basePriority"`
}

// ProviderConfig is the per-provider runtime configuration. It is resolved
// once at process start and is read-only for the lifetime of a routing
// decision.
type ProviderConfig struct {
	ID             enums.ProviderID   `json:"id"`
	Name           string             `json:"name"`
	Enabled        bool               `json:"enabled"`
	Priority       int                `json:"priority"`
	CommissionRate float64            `json:"commissionRate"`
	Regions        []string           `json:"regions,omitempty"`
	TimeoutMs      int                `json:"timeoutMs"`
	MaxRetries     int                `json:"maxRetries"`
	Mode           enums.ProviderMode `json:"mode"`
	BaseURL        string             `json:"-"`
	APIKey         string             `json:"-"`
}

// Store names the fulfillment location a quote was priced against.
type Store struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PostalCode    string  `json:"postalCode,omitempty"`
	DistanceMiles float64 `json:"distanceMiles,omitempty"`
}

// CartItem is one priced line of a provider's quote. Prices are integer
// cents, never floats.
type CartItem struct {
	ClientItemID       string `json:"clientItemId"`
	ProviderSKU        string `json:"providerSku,omitempty"`
	Name               string `json:"name"`
	Quantity           int    `json:"quantity"`
	Unit               string `json:"unit,omitempty"`
	PriceCents         int    `json:"priceCents"`
	Substituted        bool   `json:"substituted"`
	SubstitutionReason string `json:"substitutionReason,omitempty"`
}

// ItemAvailability records how one requested item resolved against the
// provider catalog. Every response carries exactly one entry per requested
// item, whatever the status.
type ItemAvailability struct {
	ClientItemID       string                   `json:"clientItemId"`
	RequestedName      string                   `json:"requestedItem"`
	Status             enums.AvailabilityStatus `json:"status"`
	InStock            bool                     `json:"inStock"`
	ProviderSKU        string                   `json:"providerSku,omitempty"`
	FoundProduct       string                   `json:"foundProduct,omitempty"`
	SubstitutedProduct string                   `json:"substitutedProduct,omitempty"`
}

// Quote is the money half of a provider response.
// TotalCents == SubtotalCents + FeesCents + TaxCents always holds.
type Quote struct {
	SubtotalCents            int            `json:"subtotalCents"`
	FeesCents                int            `json:"feesCents"`
	TaxCents                 int            `json:"taxCents"`
	TotalCents               int            `json:"totalCents"`
	Currency                 enums.Currency `json:"currency"`
	EstimatedDeliveryMinutes int            `json:"estimatedDeliveryMinutes"`
}

// ProviderQuote is one provider's complete answer. Produced once per
// successful call; immutable after creation.
type ProviderQuote struct {
	Provider         Provider           `json:"provider"`
	Config           ProviderConfig     `json:"config"`
	Store            *Store             `json:"store,omitempty"`
	Cart             []CartItem         `json:"cart"`
	Quote            Quote              `json:"quote"`
	ItemAvailability []ItemAvailability `json:"itemAvailability"`
	AffiliateURL     string             `json:"affiliateUrl,omitempty"`
	Raw              json.RawMessage    `json:"raw,omitempty"`
}

// FulfillableItems counts the requested items the provider can deliver,
// found or substituted.
func (q *ProviderQuote) FulfillableItems() int {
	if q == nil {
		return 0
	}
	count := 0
	for _, item := range q.ItemAvailability {
		if item.Status.Fulfillable() {
			count++
		}
	}
	return count
}

// identity derives the Provider header from a config snapshot.
func identity(cfg ProviderConfig) Provider {
	return Provider{
		ID:           cfg.ID,
		Name:         cfg.Name,
		BasePriority: cfg.Priority,
	}
}
