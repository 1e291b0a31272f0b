package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// Instacart charges the steepest fees and delivers fastest.
var instacartModel = feeModel{
	serviceFeeBps:          1000,
	deliveryFeeCents:       599,
	taxBps:                 800,
	baseDeliveryMinutes:    22,
	perItemDeliveryMinutes: 1,
	priceFactorBps:         10800,
	unavailablePct:         6,
	substitutedPct:         10,
	substituteBrand:        "Replacement",
}

const (
	instacartRetailersPath = "/idp/v1/retailers"
	instacartQuotePath     = "/idp/v1/baskets/quote"
	instacartHealthPath    = "/idp/v1/health"
)

type instacartRetailer struct {
	RetailerID string  `json:"retailer_id"`
	Name       string  `json:"name"`
	Zip        string  `json:"zip"`
	Distance   float64 `json:"distance"`
}

type instacartRetailersResponse struct {
	Retailers []instacartRetailer `json:"retailers"`
}

type instacartBasketLine struct {
	LineID   string `json:"line_id"`
	Term     string `json:"term"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit,omitempty"`
}

type instacartQuoteRequest struct {
	RetailerID string                `json:"retailer_id"`
	UserRef    string                `json:"user_ref,omitempty"`
	Lines      []instacartBasketLine `json:"lines"`
}

type instacartQuotedLine struct {
	LineID      string `json:"line_id"`
	ProductID   string `json:"product_id"`
	DisplayName string `json:"display_name"`
	PriceCents  int    `json:"price_cents"`
	Available   bool   `json:"available"`
	Replaced    bool   `json:"replaced"`
	ReplacedWhy string `json:"replaced_why,omitempty"`
}

type instacartQuoteResponse struct {
	Lines       []instacartQuotedLine `json:"lines"`
	CheckoutURL string                `json:"checkout_url"`
}

type instacartAdapter struct {
	deps adapterDeps
}

var _ Adapter = (*instacartAdapter)(nil)

func newInstacartAdapter(deps adapterDeps) *instacartAdapter {
	return &instacartAdapter{deps: deps}
}

func (a *instacartAdapter) ID() enums.ProviderID {
	return enums.ProviderInstacart
}

func (a *instacartAdapter) GetQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	return dispatchQuote(ctx, a.deps, a.ID(), instacartModel, req, cfg, func(ctx context.Context) (*ProviderQuote, error) {
		return a.realQuote(ctx, req, cfg)
	})
}

func (a *instacartAdapter) HealthCheck(ctx context.Context, cfg ProviderConfig) error {
	if cfg.Mode == enums.ProviderModeMock {
		return nil
	}
	return a.deps.upstream.getJSON(ctx, a.ID(), cfg, "health", instacartHealthPath, nil, nil)
}

func (a *instacartAdapter) realQuote(ctx context.Context, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	if !servesRegion(cfg, req) {
		return nil, NewError(a.ID(), CodeNoStores, "no serviceable store in the shipping region", false)
	}

	var retailersResp instacartRetailersResponse
	query := url.Values{"zip": {req.ShippingAddress.PostalCode}}
	if err := a.deps.upstream.getJSON(ctx, a.ID(), cfg, "find_retailers", instacartRetailersPath, query, &retailersResp); err != nil {
		return nil, err
	}
	if len(retailersResp.Retailers) == 0 {
		return nil, NewError(a.ID(), CodeNoStores, fmt.Sprintf("no retailers near %s", req.ShippingAddress.PostalCode), false)
	}

	nearest := retailersResp.Retailers[0]
	for _, candidate := range retailersResp.Retailers[1:] {
		if candidate.Distance < nearest.Distance {
			nearest = candidate
		}
	}
	store := Store{
		ID:            nearest.RetailerID,
		Name:          nearest.Name,
		PostalCode:    nearest.Zip,
		DistanceMiles: nearest.Distance,
	}

	quoteReq := instacartQuoteRequest{RetailerID: store.ID}
	if req.UserContext != nil && req.UserContext.UserID != uuid.Nil {
		quoteReq.UserRef = req.UserContext.UserID.String()
	}
	for _, item := range req.Items {
		quoteReq.Lines = append(quoteReq.Lines, instacartBasketLine{
			LineID:   item.ID,
			Term:     item.Name,
			Quantity: item.Quantity,
			Unit:     item.Unit,
		})
	}

	var quoteResp instacartQuoteResponse
	if err := a.deps.upstream.postJSON(ctx, a.ID(), cfg, "quote_basket", instacartQuotePath, quoteReq, &quoteResp); err != nil {
		return nil, err
	}

	lines := make(map[string]catalogLine, len(quoteResp.Lines))
	for _, quoted := range quoteResp.Lines {
		lines[quoted.LineID] = catalogLine{
			SKU:                quoted.ProductID,
			Name:               quoted.DisplayName,
			PriceCents:         quoted.PriceCents,
			InStock:            quoted.Available,
			Substituted:        quoted.Replaced,
			SubstitutionReason: quoted.ReplacedWhy,
		}
	}

	affiliate := quoteResp.CheckoutURL
	if affiliate == "" {
		affiliate = fmt.Sprintf("%s/checkout?retailer=%s&partner=pantryloop",
			strings.TrimRight(cfg.BaseURL, "/"), store.ID)
	}
	raw, _ := json.Marshal(map[string]any{
		"mode":     "real",
		"retailer": store.ID,
		"lines":    len(quoteResp.Lines),
	})

	return assembleQuote(cfg, instacartModel, req, store, lines, affiliate, raw, 0), nil
}
