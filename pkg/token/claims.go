package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// ConfirmationPayload captures the data available when minting a confirmation token.
type ConfirmationPayload struct {
	DecisionID uuid.UUID
	ProviderID enums.ProviderID
	TotalCents int
	JTI        string
}

// ConfirmationClaims binds a routing decision to the quote that was selected,
// so checkout can prove the total it confirms is the total that was scored.
type ConfirmationClaims struct {
	DecisionID uuid.UUID        `json:"decision_id"`
	ProviderID enums.ProviderID `json:"provider_id"`
	TotalCents int              `json:"total_cents"`
	jwt.RegisteredClaims
}
