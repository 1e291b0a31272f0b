package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// Kroger direct: low flat delivery fee, slower estimates, and a strong lean
// on store-brand substitutions.
var krogerModel = feeModel{
	deliveryFeeCents:       195,
	taxBps:                 700,
	baseDeliveryMinutes:    48,
	perItemDeliveryMinutes: 3,
	priceFactorBps:         9600,
	unavailablePct:         8,
	substitutedPct:         18,
	substituteBrand:        "Kroger Brand",
}

const (
	krogerLocationsPath = "/v1/locations"
	krogerQuotePath     = "/v1/cart/quote"
	krogerHealthPath    = "/v1/health"
)

type krogerLocation struct {
	LocationID string  `json:"locationId"`
	Name       string  `json:"name"`
	ZipCode    string  `json:"zipCode"`
	Miles      float64 `json:"miles"`
}

type krogerLocationsResponse struct {
	Data []krogerLocation `json:"data"`
}

type krogerCartEntry struct {
	ItemRef  string `json:"itemRef"`
	Search   string `json:"search"`
	Quantity int    `json:"quantity"`
}

type krogerQuoteRequest struct {
	LocationID string            `json:"locationId"`
	Entries    []krogerCartEntry `json:"entries"`
}

type krogerQuotedEntry struct {
	ItemRef     string `json:"itemRef"`
	UPC         string `json:"upc"`
	Description string `json:"description"`
	PriceCents  int    `json:"priceCents"`
	InStock     bool   `json:"inStock"`
	Substituted bool   `json:"substituted"`
	Note        string `json:"note,omitempty"`
}

type krogerQuoteResponse struct {
	Entries []krogerQuotedEntry `json:"entries"`
}

type krogerAdapter struct {
	deps adapterDeps
}

var _ Adapter = (*krogerAdapter)(nil)

func newKrogerAdapter(deps adapterDeps) *krogerAdapter {
	return &krogerAdapter{deps: deps}
}

func (a *krogerAdapter) ID() enums.ProviderID {
	return enums.ProviderKroger
}

func (a *krogerAdapter) GetQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	return dispatchQuote(ctx, a.deps, a.ID(), krogerModel, req, cfg, func(ctx context.Context) (*ProviderQuote, error) {
		return a.realQuote(ctx, req, cfg)
	})
}

func (a *krogerAdapter) HealthCheck(ctx context.Context, cfg ProviderConfig) error {
	if cfg.Mode == enums.ProviderModeMock {
		return nil
	}
	return a.deps.upstream.getJSON(ctx, a.ID(), cfg, "health", krogerHealthPath, nil, nil)
}

func (a *krogerAdapter) realQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	if !servesRegion(cfg, req) {
		return nil, NewError(a.ID(), CodeNoStores, "no serviceable store in the shipping region", false)
	}

	var locationsResp krogerLocationsResponse
	query := url.Values{"filter.zipCode.near": {req.ShippingAddress.PostalCode}}
	if err := a.deps.upstream.getJSON(ctx, a.ID(), cfg, "find_locations", krogerLocationsPath, query, &locationsResp); err != nil {
		return nil, err
	}
	if len(locationsResp.Data) == 0 {
		return nil, NewError(a.ID(), CodeNoStores, fmt.Sprintf("no locations near %s", req.ShippingAddress.PostalCode), false)
	}

	nearest := locationsResp.Data[0]
	for _, candidate := range locationsResp.Data[1:] {
		if candidate.Miles < nearest.Miles {
			nearest = candidate
		}
	}
	store := Store{
		ID:            nearest.LocationID,
		Name:          nearest.Name,
		PostalCode:    nearest.ZipCode,
		DistanceMiles: nearest.Miles,
	}

	quoteReq := krogerQuoteRequest{LocationID: store.ID}
	for _, item := range req.Items {
		quoteReq.Entries = append(quoteReq.Entries, krogerCartEntry{
			ItemRef:  item.ID,
			Search:   item.Name,
			Quantity: item.Quantity,
		})
	}

	var quoteResp krogerQuoteResponse
	if err := a.deps.upstream.postJSON(ctx, a.ID(), cfg, "quote_cart", krogerQuotePath, quoteReq, &quoteResp); err != nil {
		return nil, err
	}

	lines := make(map[string]catalogLine, len(quoteResp.Entries))
	for _, entry := range quoteResp.Entries {
		lines[entry.ItemRef] = catalogLine{
			SKU:                entry.UPC,
			Name:               entry.Description,
			PriceCents:         entry.PriceCents,
			InStock:            entry.InStock,
			Substituted:        entry.Substituted,
			SubstitutionReason: entry.Note,
		}
	}

	affiliate := fmt.Sprintf("%s/cart?location=%s&partner=pantryloop",
		strings.TrimRight(cfg.BaseURL, "/"), store.ID)
	raw, _ := json.Marshal(map[string]any{
		"mode":     "real",
		"location": store.ID,
		"entries":  len(quoteResp.Entries),
	})

	return assembleQuote(cfg, krogerModel, req, store, lines, affiliate, raw, 0), nil
}
