package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintConfirmation issues a signed JWT for the selected quote using the configured TTL.
func MintConfirmation(cfg config.TokenConfig, now time.Time, payload ConfirmationPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("token secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("token issuer is required")
	}
	if cfg.TTL() <= 0 {
		return "", fmt.Errorf("token ttl minutes must be positive")
	}
	if payload.DecisionID == uuid.Nil {
		return "", fmt.Errorf("decision id is required")
	}
	if !payload.ProviderID.IsValid() {
		return "", fmt.Errorf("invalid provider id %q", payload.ProviderID)
	}
	if payload.TotalCents < 0 {
		return "", fmt.Errorf("total cents must not be negative")
	}

	issuedAt := jwt.NewNumericDate(now)
	expiry := jwt.NewNumericDate(now.Add(cfg.TTL()))

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := ConfirmationClaims{
		DecisionID: payload.DecisionID,
		ProviderID: payload.ProviderID,
		TotalCents: payload.TotalCents,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiry,
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing confirmation token: %w", err)
	}
	return signed, nil
}

// ParseConfirmation validates the token string and returns typed claims.
func ParseConfirmation(cfg config.TokenConfig, tokenString string) (*ConfirmationClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}

	claims := &ConfirmationClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}

	return claims, nil
}
