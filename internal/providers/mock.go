package providers

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// mockQuote synthesizes a schema-complete quote offline. All variation
// derives from FNV hashes of the request, never the clock, so identical
// inputs always produce identical quotes.
func mockQuote(id enums.ProviderID, model feeModel, req QuoteRequest, cfg ProviderConfig) (*ProviderQuote, error) {
	if !servesRegion(cfg, req) {
		return nil, NewError(id, CodeNoStores, "no serviceable store in the shipping region", false)
	}
	postal := strings.TrimSpace(req.ShippingAddress.PostalCode)
	// Postal codes starting 00 are the synthetic dead zone.
	if strings.HasPrefix(postal, "00") {
		return nil, NewError(id, CodeNoStores, fmt.Sprintf("no serviceable store near %s", postal), false)
	}

	seed := hash64(string(id), postal)
	store := mockStore(id, cfg.Name, postal, seed)

	lines := make(map[string]catalogLine, len(req.Items))
	for _, item := range req.Items {
		h := hash64(string(id), postal, item.ID, item.Name)
		band := int(h % 100)
		if band < model.unavailablePct {
			continue
		}

		line := catalogLine{
			SKU:     fmt.Sprintf("%s-%06d", id, h%1000000),
			InStock: true,
		}
		if band < model.unavailablePct+model.substitutedPct {
			line.Name = model.substituteBrand + " " + item.Name
			line.Substituted = true
			line.SubstitutionReason = fmt.Sprintf("%s out of stock", item.Name)
		} else {
			line.Name = item.Name
		}

		unitCents := 150 + int(h%850)
		line.PriceCents = bpsOf(unitCents*item.Quantity, model.priceFactorBps)
		lines[item.ID] = line
	}

	raw, _ := json.Marshal(map[string]any{
		"mode":  "mock",
		"seed":  fmt.Sprintf("%016x", seed),
		"store": store.ID,
	})
	affiliate := fmt.Sprintf("%s/checkout?store=%s&partner=pantryloop",
		strings.TrimRight(cfg.BaseURL, "/"), store.ID)

	return assembleQuote(cfg, model, req, store, lines, affiliate, raw, int(seed%8)), nil
}

func mockStore(id enums.ProviderID, displayName, postal string, seed uint64) Store {
	number := 100 + int(seed%900)
	return Store{
		ID:            fmt.Sprintf("%s-store-%04d", id, number),
		Name:          fmt.Sprintf("%s #%d", displayName, number),
		PostalCode:    postal,
		DistanceMiles: float64(seed%80) / 10,
	}
}

func hash64(parts ...string) uint64 {
	h := fnv.New64a()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
