package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/telemetry"
)

// Adapter is the contract every provider integration satisfies. GetQuote
// either returns a schema-complete ProviderQuote or a typed *Error; it never
// panics for expected failure modes.
type Adapter interface {
	ID() enums.ProviderID
	GetQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error)
	HealthCheck(ctx context.Context, cfg ProviderConfig) error
}

// adapterDeps is the shared wiring handed to every concrete adapter.
type adapterDeps struct {
	upstream *upstreamClient
	logg     *logger.Logger
	emitter  *telemetry.Emitter
}

// dispatchQuote runs the mode branch shared by the four adapters: validate,
// then mock, real, or real-with-mock-fallback. Fallback fires only on
// retryable failure classes and announces itself through telemetry.
func dispatchQuote(
	ctx context.Context,
	deps adapterDeps,
	id enums.ProviderID,
	model feeModel,
	req QuoteRequest,
	cfg ProviderConfig,
	real func(ctx context.Context) (*ProviderQuote, error),
) (*ProviderQuote, error) {
	if err := validateRequest(id, req); err != nil {
		return nil, err
	}

	mode := cfg.Mode
	if !mode.IsValid() {
		mode = enums.ProviderModeMock
	}

	switch mode {
	case enums.ProviderModeMock:
		return mockQuote(id, model, req, cfg)
	case enums.ProviderModeReal:
		return real(ctx)
	default:
		quote, err := real(ctx)
		if err == nil {
			return quote, nil
		}
		perr := AsError(err)
		if perr == nil || !perr.IsRetryable() {
			return nil, err
		}
		deps.emitter.Emit(ctx, telemetry.EventProviderFallback, map[string]any{
			"provider_id": id.String(),
			"code":        perr.ErrorCode(),
			"message":     perr.Message(),
		})
		deps.logg.Warn(deps.logg.WithProviderID(ctx, id.String()),
			fmt.Sprintf("falling back to mock quote after %s", perr.ErrorCode()))
		return mockQuote(id, model, req, cfg)
	}
}

// validateRequest rejects calls no provider could serve. Failures are typed
// INVALID_REQUEST so they are never retried.
func validateRequest(id enums.ProviderID, req QuoteRequest) *Error {
	if len(req.Items) == 0 {
		return NewError(id, CodeInvalidRequest, "at least one item is required", false)
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if strings.TrimSpace(item.ID) == "" {
			return NewError(id, CodeInvalidRequest, "item id is required", false)
		}
		if _, dup := seen[item.ID]; dup {
			return NewError(id, CodeInvalidRequest, fmt.Sprintf("duplicate item id %q", item.ID), false)
		}
		seen[item.ID] = struct{}{}
		if strings.TrimSpace(item.Name) == "" {
			return NewError(id, CodeInvalidRequest, fmt.Sprintf("item %q name is required", item.ID), false)
		}
		if item.Quantity <= 0 {
			return NewError(id, CodeInvalidRequest, fmt.Sprintf("item %q quantity must be positive", item.ID), false)
		}
	}
	if strings.TrimSpace(req.ShippingAddress.City) == "" {
		return NewError(id, CodeInvalidRequest, "shipping address city is required", false)
	}
	if strings.TrimSpace(req.ShippingAddress.PostalCode) == "" {
		return NewError(id, CodeInvalidRequest, "shipping address postal code is required", false)
	}
	return nil
}

// servesRegion reports whether the config's region allowlist covers the
// shipping address. An empty allowlist means nationwide.
func servesRegion(cfg ProviderConfig, req QuoteRequest) bool {
	if len(cfg.Regions) == 0 {
		return true
	}
	if req.ShippingAddress.State == nil {
		return false
	}
	state := strings.ToUpper(strings.TrimSpace(*req.ShippingAddress.State))
	for _, region := range cfg.Regions {
		if strings.ToUpper(strings.TrimSpace(region)) == state {
			return true
		}
	}
	return false
}
