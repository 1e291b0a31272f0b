package token

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

func TestMintAndParseConfirmation(t *testing.T) {
	cfg := config.TokenConfig{
		Secret:     "secret",
		Issuer:     "pantryloop-router",
		TTLMinutes: 30,
	}
	now := time.Now().UTC()
	decisionID := uuid.New()

	payload := ConfirmationPayload{
		DecisionID: decisionID,
		ProviderID: enums.ProviderInstacart,
		TotalCents: 4385,
	}

	token, err := MintConfirmation(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint confirmation token: %v", err)
	}

	claims, err := ParseConfirmation(cfg, token)
	if err != nil {
		t.Fatalf("parse confirmation token: %v", err)
	}

	if claims.DecisionID != decisionID {
		t.Fatalf("expected decision_id %s, got %s", decisionID, claims.DecisionID)
	}
	if claims.ProviderID != enums.ProviderInstacart {
		t.Fatalf("unexpected provider %s", claims.ProviderID)
	}
	if claims.TotalCents != 4385 {
		t.Fatalf("expected total_cents 4385, got %d", claims.TotalCents)
	}

	// RegisteredClaims is embedded, so access fields directly.
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}

	exp := now.Add(cfg.TTL())
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseConfirmationInvalidSignature(t *testing.T) {
	cfg := config.TokenConfig{
		Secret:     "secret",
		Issuer:     "pantryloop-router",
		TTLMinutes: 10,
	}
	payload := ConfirmationPayload{
		DecisionID: uuid.New(),
		ProviderID: enums.ProviderKroger,
		TotalCents: 1200,
	}

	token, err := MintConfirmation(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint confirmation token: %v", err)
	}

	if _, err := ParseConfirmation(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseConfirmationExpired(t *testing.T) {
	cfg := config.TokenConfig{
		Secret:     "secret",
		Issuer:     "pantryloop-router",
		TTLMinutes: 15,
	}
	now := time.Now().Add(-time.Hour)
	payload := ConfirmationPayload{
		DecisionID: uuid.New(),
		ProviderID: enums.ProviderWalmart,
		TotalCents: 999,
	}

	token, err := MintConfirmation(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint confirmation token: %v", err)
	}

	_, err = ParseConfirmation(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseConfirmationWrongIssuer(t *testing.T) {
	mintCfg := config.TokenConfig{
		Secret:     "secret",
		Issuer:     "someone-else",
		TTLMinutes: 5,
	}
	payload := ConfirmationPayload{
		DecisionID: uuid.New(),
		ProviderID: enums.ProviderMealMe,
		TotalCents: 2500,
	}

	token, err := MintConfirmation(mintCfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint confirmation token: %v", err)
	}

	parseCfg := mintCfg
	parseCfg.Issuer = "pantryloop-router"
	if _, err := ParseConfirmation(parseCfg, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestMintConfirmationInvalidPayload(t *testing.T) {
	cfg := config.TokenConfig{
		Secret:     "secret",
		Issuer:     "pantryloop-router",
		TTLMinutes: 5,
	}

	cases := []struct {
		name    string
		payload ConfirmationPayload
	}{
		{
			name: "missing decision id",
			payload: ConfirmationPayload{
				ProviderID: enums.ProviderKroger,
				TotalCents: 100,
			},
		},
		{
			name: "unknown provider",
			payload: ConfirmationPayload{
				DecisionID: uuid.New(),
				ProviderID: "doordash",
				TotalCents: 100,
			},
		},
		{
			name: "negative total",
			payload: ConfirmationPayload{
				DecisionID: uuid.New(),
				ProviderID: enums.ProviderKroger,
				TotalCents: -1,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := MintConfirmation(cfg, time.Now(), tc.payload); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
