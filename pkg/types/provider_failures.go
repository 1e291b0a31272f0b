package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// ProviderFailure captures one provider's terminal error during a routing
// decision.
type ProviderFailure struct {
	ProviderID enums.ProviderID `json:"provider_id"`
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	Retryable  bool             `json:"retryable"`
}

// ProviderFailures is the per-decision failure list persisted as JSONB.
type ProviderFailures []ProviderFailure

// Value serializes the failures to JSON.
func (p ProviderFailures) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan decodes JSONB into the failure list.
func (p *ProviderFailures) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded ProviderFailures
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}
