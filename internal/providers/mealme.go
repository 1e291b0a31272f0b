package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// MealMe is the broad aggregator: percent service fee plus a flat delivery
// fee, middle-of-the-pack delivery estimates, widest catalog coverage.
var mealMeModel = feeModel{
	serviceFeeBps:          500,
	deliveryFeeCents:       399,
	taxBps:                 800,
	baseDeliveryMinutes:    35,
	perItemDeliveryMinutes: 2,
	priceFactorBps:         10000,
	unavailablePct:         4,
	substitutedPct:         8,
	substituteBrand:        "House Pick",
}

const (
	mealMeStoresPath = "/v1/stores/search"
	mealMeQuotePath  = "/v1/carts/quote"
	mealMeHealthPath = "/v1/health"
)

type mealMeStore struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PostalCode    string  `json:"postal_code"`
	DistanceMiles float64 `json:"distance_miles"`
}

type mealMeStoresResponse struct {
	Stores []mealMeStore `json:"stores"`
}

type mealMeQuoteItem struct {
	ClientItemID string `json:"client_item_id"`
	Query        string `json:"query"`
	Quantity     int    `json:"quantity"`
	Unit         string `json:"unit,omitempty"`
	Preferences  string `json:"preferences,omitempty"`
}

type mealMeQuoteRequest struct {
	StoreID             string           `json:"store_id"`
	Items               []mealMeQuoteItem `json:"items"`
	SpecialInstructions string           `json:"special_instructions,omitempty"`
	DeliverBy           string           `json:"deliver_by,omitempty"`
}

type mealMeQuoteResult struct {
	ClientItemID       string `json:"client_item_id"`
	SKU                string `json:"sku"`
	Name               string `json:"name"`
	PriceCents         int    `json:"price_cents"`
	InStock            bool   `json:"in_stock"`
	Substituted        bool   `json:"substituted"`
	SubstitutionReason string `json:"substitution_reason,omitempty"`
}

type mealMeQuoteResponse struct {
	Results     []mealMeQuoteResult `json:"results"`
	CheckoutURL string              `json:"checkout_url"`
}

type mealMeAdapter struct {
	deps adapterDeps
}

var _ Adapter = (*mealMeAdapter)(nil)

func newMealMeAdapter(deps adapterDeps) *mealMeAdapter {
	return &mealMeAdapter{deps: deps}
}

func (a *mealMeAdapter) ID() enums.ProviderID {
	return enums.ProviderMealMe
}

func (a *mealMeAdapter) GetQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	return dispatchQuote(ctx, a.deps, a.ID(), mealMeModel, req, cfg, func(ctx context.Context) (*ProviderQuote, error) {
		return a.realQuote(ctx, req, cfg)
	})
}

func (a *mealMeAdapter) HealthCheck(ctx context.Context, cfg ProviderConfig) error {
	if cfg.Mode == enums.ProviderModeMock {
		return nil
	}
	return a.deps.upstream.getJSON(ctx, a.ID(), cfg, "health", mealMeHealthPath, nil, nil)
}

func (a *mealMeAdapter) realQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	if !servesRegion(cfg, req) {
		return nil, NewError(a.ID(), CodeNoStores, "no serviceable store in the shipping region", false)
	}

	var storesResp mealMeStoresResponse
	query := url.Values{"postal_code": {req.ShippingAddress.PostalCode}}
	if err := a.deps.upstream.getJSON(ctx, a.ID(), cfg, "find_stores", mealMeStoresPath, query, &storesResp); err != nil {
		return nil, err
	}
	if len(storesResp.Stores) == 0 {
		return nil, NewError(a.ID(), CodeNoStores, fmt.Sprintf("no stores near %s", req.ShippingAddress.PostalCode), false)
	}

	nearest := storesResp.Stores[0]
	for _, candidate := range storesResp.Stores[1:] {
		if candidate.DistanceMiles < nearest.DistanceMiles {
			nearest = candidate
		}
	}
	store := Store{
		ID:            nearest.ID,
		Name:          nearest.Name,
		PostalCode:    nearest.PostalCode,
		DistanceMiles: nearest.DistanceMiles,
	}

	quoteReq := mealMeQuoteRequest{
		StoreID:             store.ID,
		SpecialInstructions: req.SpecialInstructions,
	}
	if req.DeliveryWindow != nil {
		quoteReq.DeliverBy = req.DeliveryWindow.End.Format(time.RFC3339)
	}
	for _, item := range req.Items {
		quoteReq.Items = append(quoteReq.Items, mealMeQuoteItem{
			ClientItemID: item.ID,
			Query:        item.Name,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			Preferences:  item.Preferences,
		})
	}

	var quoteResp mealMeQuoteResponse
	if err := a.deps.upstream.postJSON(ctx, a.ID(), cfg, "create_quote", mealMeQuotePath, quoteReq, &quoteResp); err != nil {
		return nil, err
	}

	lines := make(map[string]catalogLine, len(quoteResp.Results))
	for _, result := range quoteResp.Results {
		lines[result.ClientItemID] = catalogLine{
			SKU:                result.SKU,
			Name:               result.Name,
			PriceCents:         result.PriceCents,
			InStock:            result.InStock,
			Substituted:        result.Substituted,
			SubstitutionReason: result.SubstitutionReason,
		}
	}

	affiliate := quoteResp.CheckoutURL
	if affiliate == "" {
		affiliate = fmt.Sprintf("%s/checkout?store=%s&partner=pantryloop",
			strings.TrimRight(cfg.BaseURL, "/"), store.ID)
	}
	raw, _ := json.Marshal(map[string]any{
		"mode":    "real",
		"store":   store.ID,
		"results": len(quoteResp.Results),
	})

	return assembleQuote(cfg, mealMeModel, req, store, lines, affiliate, raw, 0), nil
}
