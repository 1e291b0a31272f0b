package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// QuoteSummary flattens one provider quote for the decision audit row.
type QuoteSummary struct {
	ProviderID               enums.ProviderID `json:"provider_id"`
	StoreID                  *string          `json:"store_id,omitempty"`
	StoreName                *string          `json:"store_name,omitempty"`
	SubtotalCents            int              `json:"subtotal_cents"`
	FeesCents                int              `json:"fees_cents"`
	TaxCents                 int              `json:"tax_cents"`
	TotalCents               int              `json:"total_cents"`
	Currency                 enums.Currency   `json:"currency"`
	EstimatedDeliveryMinutes int              `json:"estimated_delivery_minutes"`
	ItemsFound               int              `json:"items_found"`
	ItemsSubstituted         int              `json:"items_substituted"`
	ItemsUnavailable         int              `json:"items_unavailable"`
}

// QuoteSummaries persists the per-decision quote set as JSONB.
type QuoteSummaries []QuoteSummary

// Value serializes the summaries to JSON.
func (q QuoteSummaries) Value() (driver.Value, error) {
	if q == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q)
}

// Scan decodes JSONB into the summary list.
func (q *QuoteSummaries) Scan(value interface{}) error {
	if value == nil {
		*q = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded QuoteSummaries
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*q = decoded
	return nil
}
