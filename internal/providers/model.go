package providers

import (
	"encoding/json"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// feeModel is a provider's pricing personality: fee and tax structure,
// delivery estimates, catalog hit rates, and the price factor the mock
// engine applies to its synthetic base prices. Both the real and mock paths
// run their totals through the same model so the arithmetic invariant holds
// everywhere.
type feeModel struct {
	serviceFeeBps          int
	deliveryFeeCents       int
	freeDeliveryOverCents  int
	taxBps                 int
	baseDeliveryMinutes    int
	perItemDeliveryMinutes int
	priceFactorBps         int
	unavailablePct         int
	substitutedPct         int
	substituteBrand        string
}

// buildQuote derives the money totals from a priced subtotal.
// TotalCents == SubtotalCents + FeesCents + TaxCents by construction.
func (m feeModel) buildQuote(subtotalCents, itemCount, deliveryVarianceMinutes int) Quote {
	fees := bpsOf(subtotalCents, m.serviceFeeBps) + m.deliveryFee(subtotalCents)
	tax := bpsOf(subtotalCents, m.taxBps)
	return Quote{
		SubtotalCents:            subtotalCents,
		FeesCents:                fees,
		TaxCents:                 tax,
		TotalCents:               subtotalCents + fees + tax,
		Currency:                 enums.CurrencyUSD,
		EstimatedDeliveryMinutes: m.baseDeliveryMinutes + m.perItemDeliveryMinutes*itemCount + deliveryVarianceMinutes,
	}
}

func (m feeModel) deliveryFee(subtotalCents int) int {
	if m.freeDeliveryOverCents > 0 && subtotalCents >= m.freeDeliveryOverCents {
		return 0
	}
	return m.deliveryFeeCents
}

// bpsOf applies a basis-point rate to integer cents. Integer math keeps
// quotes deterministic across platforms.
func bpsOf(cents, bps int) int {
	return cents * bps / 10000
}

// catalogLine is the provider-neutral form of one matched catalog item.
// PriceCents is the full line price, quantity included.
type catalogLine struct {
	SKU                string
	Name               string
	PriceCents         int
	InStock            bool
	Substituted        bool
	SubstitutionReason string
}

// assembleQuote builds the schema-complete quote from per-item catalog
// matches. Requested items with no line, or an out-of-stock line, surface as
// unavailable; the availability list always covers every requested item.
func assembleQuote(
	cfg ProviderConfig,
	model feeModel,
	req QuoteRequest,
	store Store,
	lines map[string]catalogLine,
	affiliateURL string,
	raw json.RawMessage,
	deliveryVarianceMinutes int,
) *ProviderQuote {
	cart := make([]CartItem, 0, len(req.Items))
	availability := make([]ItemAvailability, 0, len(req.Items))
	subtotalCents := 0

	for _, item := range req.Items {
		entry := ItemAvailability{
			ClientItemID:  item.ID,
			RequestedName: item.Name,
		}

		line, ok := lines[item.ID]
		if !ok || !line.InStock {
			entry.Status = enums.AvailabilityUnavailable
			availability = append(availability, entry)
			continue
		}

		entry.InStock = true
		entry.ProviderSKU = line.SKU
		if line.Substituted {
			entry.Status = enums.AvailabilitySubstituted
			entry.SubstitutedProduct = line.Name
		} else {
			entry.Status = enums.AvailabilityFound
			entry.FoundProduct = line.Name
		}

		cart = append(cart, CartItem{
			ClientItemID:       item.ID,
			ProviderSKU:        line.SKU,
			Name:               line.Name,
			Quantity:           item.Quantity,
			Unit:               item.Unit,
			PriceCents:         line.PriceCents,
			Substituted:        line.Substituted,
			SubstitutionReason: line.SubstitutionReason,
		})
		subtotalCents += line.PriceCents
		availability = append(availability, entry)
	}

	return &ProviderQuote{
		Provider:         identity(cfg),
		Config:           cfg,
		Store:            &store,
		Cart:             cart,
		Quote:            model.buildQuote(subtotalCents, len(req.Items), deliveryVarianceMinutes),
		ItemAvailability: availability,
		AffiliateURL:     affiliateURL,
		Raw:              raw,
	}
}
