package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// Walmart direct: cheapest subtotals and slowest estimates, with free
// delivery above the basket threshold.
var walmartModel = feeModel{
	deliveryFeeCents:       299,
	freeDeliveryOverCents:  3500,
	taxBps:                 650,
	baseDeliveryMinutes:    55,
	perItemDeliveryMinutes: 3,
	priceFactorBps:         8800,
	unavailablePct:         10,
	substitutedPct:         12,
	substituteBrand:        "Great Value",
}

const (
	walmartStoresPath   = "/v3/stores"
	walmartEstimatePath = "/v3/affiliates/cart/estimate"
	walmartHealthPath   = "/v3/health"
)

type walmartStorePayload struct {
	StoreNumber string  `json:"storeNumber"`
	DisplayName string  `json:"displayName"`
	Zip         string  `json:"zip"`
	DistanceMi  float64 `json:"distanceMi"`
}

type walmartStoresResponse struct {
	Stores []walmartStorePayload `json:"stores"`
}

type walmartEstimateItem struct {
	RefID    string `json:"refId"`
	Keywords string `json:"keywords"`
	Quantity int    `json:"quantity"`
}

type walmartEstimateRequest struct {
	StoreNumber string                `json:"storeNumber"`
	Items       []walmartEstimateItem `json:"items"`
}

type walmartEstimatedItem struct {
	RefID       string `json:"refId"`
	ItemID      string `json:"itemId"`
	Title       string `json:"title"`
	PriceCents  int    `json:"priceCents"`
	Available   bool   `json:"available"`
	Substituted bool   `json:"substituted"`
	Reason      string `json:"reason,omitempty"`
}

type walmartEstimateResponse struct {
	Items []walmartEstimatedItem `json:"items"`
}

type walmartAdapter struct {
	deps adapterDeps
}

var _ Adapter = (*walmartAdapter)(nil)

func newWalmartAdapter(deps adapterDeps) *walmartAdapter {
	return &walmartAdapter{deps: deps}
}

func (a *walmartAdapter) ID() enums.ProviderID {
	return enums.ProviderWalmart
}

func (a *walmartAdapter) GetQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	return dispatchQuote(ctx, a.deps, a.ID(), walmartModel, req, cfg, func(ctx context.Context) (*ProviderQuote, error) {
		return a.realQuote(ctx, req, cfg)
	})
}

func (a *walmartAdapter) HealthCheck(ctx context.Context, cfg ProviderConfig) error {
	if cfg.Mode == enums.ProviderModeMock {
		return nil
	}
	return a.deps.upstream.getJSON(ctx, a.ID(), cfg, "health", walmartHealthPath, nil, nil)
}

func (a *walmartAdapter) realQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	if !servesRegion(cfg, req) {
		return nil, NewError(a.ID(), CodeNoStores, "no serviceable store in the shipping region", false)
	}

	var storesResp walmartStoresResponse
	query := url.Values{"zip": {req.ShippingAddress.PostalCode}}
	if err := a.deps.upstream.getJSON(ctx, a.ID(), cfg, "find_stores", walmartStoresPath, query, &storesResp); err != nil {
		return nil, err
	}
	if len(storesResp.Stores) == 0 {
		return nil, NewError(a.ID(), CodeNoStores, fmt.Sprintf("no stores near %s", req.ShippingAddress.PostalCode), false)
	}

	nearest := storesResp.Stores[0]
	for _, candidate := range storesResp.Stores[1:] {
		if candidate.DistanceMi < nearest.DistanceMi {
			nearest = candidate
		}
	}
	store := Store{
		ID:            nearest.StoreNumber,
		Name:          nearest.DisplayName,
		PostalCode:    nearest.Zip,
		DistanceMiles: nearest.DistanceMi,
	}

	estimateReq := walmartEstimateRequest{StoreNumber: store.ID}
	for _, item := range req.Items {
		estimateReq.Items = append(estimateReq.Items, walmartEstimateItem{
			RefID:    item.ID,
			Keywords: item.Name,
			Quantity: item.Quantity,
		})
	}

	var estimateResp walmartEstimateResponse
	if err := a.deps.upstream.postJSON(ctx, a.ID(), cfg, "estimate_cart", walmartEstimatePath, estimateReq, &estimateResp); err != nil {
		return nil, err
	}

	lines := make(map[string]catalogLine, len(estimateResp.Items))
	for _, estimated := range estimateResp.Items {
		lines[estimated.RefID] = catalogLine{
			SKU:                estimated.ItemID,
			Name:               estimated.Title,
			PriceCents:         estimated.PriceCents,
			InStock:            estimated.Available,
			Substituted:        estimated.Substituted,
			SubstitutionReason: estimated.Reason,
		}
	}

	affiliate := fmt.Sprintf("%s/cart?store=%s&partner=pantryloop",
		strings.TrimRight(cfg.BaseURL, "/"), store.ID)
	raw, _ := json.Marshal(map[string]any{
		"mode":  "real",
		"store": store.ID,
		"items": len(estimateResp.Items),
	})

	return assembleQuote(cfg, walmartModel, req, store, lines, affiliate, raw, 0), nil
}
