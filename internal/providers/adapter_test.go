package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/telemetry"
)

func testDeps(telemetryOut io.Writer) adapterDeps {
	logg := logger.New(logger.Options{ServiceName: "providers-test", Output: io.Discard})
	var emitter *telemetry.Emitter
	if telemetryOut != nil {
		emitter = telemetry.New(telemetry.Options{ServiceName: "providers-test", Output: telemetryOut})
	}
	return adapterDeps{
		upstream: newUpstreamClient(logg),
		logg:     logg,
		emitter:  emitter,
	}
}

func TestValidateRequest(t *testing.T) {
	valid := testRequest("78701")

	cases := []struct {
		name   string
		mutate func(req *QuoteRequest)
	}{
		{"no items", func(req *QuoteRequest) { req.Items = nil }},
		{"blank item id", func(req *QuoteRequest) { req.Items[0].ID = " " }},
		{"duplicate item id", func(req *QuoteRequest) { req.Items[1].ID = req.Items[0].ID }},
		{"blank item name", func(req *QuoteRequest) { req.Items[0].Name = "" }},
		{"zero quantity", func(req *QuoteRequest) { req.Items[2].Quantity = 0 }},
		{"missing city", func(req *QuoteRequest) { req.ShippingAddress.City = "" }},
		{"missing postal code", func(req *QuoteRequest) { req.ShippingAddress.PostalCode = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			req.Items = append([]RequestedItem(nil), valid.Items...)
			tc.mutate(&req)

			err := validateRequest(enums.ProviderMealMe, req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.ErrorCode() != CodeInvalidRequest {
				t.Fatalf("expected %s, got %s", CodeInvalidRequest, err.ErrorCode())
			}
			if err.IsRetryable() {
				t.Fatal("validation failures must not be retryable")
			}
		})
	}

	if err := validateRequest(enums.ProviderMealMe, valid); err != nil {
		t.Fatalf("expected valid request to pass, got %v", err)
	}
}

func TestGetQuoteMockMode(t *testing.T) {
	adapter := newMealMeAdapter(testDeps(nil))
	cfg := testConfig(enums.ProviderMealMe)

	quote, err := adapter.GetQuote(context.Background(), testRequest("78701"), cfg)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if quote.Provider.ID != enums.ProviderMealMe {
		t.Fatalf("unexpected provider %s", quote.Provider.ID)
	}
	if quote.Config.ID != cfg.ID || quote.Config.CommissionRate != cfg.CommissionRate {
		t.Fatal("expected config snapshot on the quote")
	}
	if !strings.Contains(string(quote.Raw), `"mode":"mock"`) {
		t.Fatalf("expected mock diagnostics, got %s", quote.Raw)
	}
}

func TestGetQuoteRealMode(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		switch {
		case r.URL.Path == mealMeStoresPath:
			json.NewEncoder(w).Encode(mealMeStoresResponse{Stores: []mealMeStore{
				{ID: "mm-far", Name: "MealMe Partner Far", PostalCode: "78702", DistanceMiles: 6.5},
				{ID: "mm-near", Name: "MealMe Partner Near", PostalCode: "78701", DistanceMiles: 1.2},
			}})
		case r.URL.Path == mealMeQuotePath:
			var req mealMeQuoteRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode quote request: %v", err)
			}
			if req.StoreID != "mm-near" {
				t.Errorf("expected nearest store mm-near, got %s", req.StoreID)
			}
			json.NewEncoder(w).Encode(mealMeQuoteResponse{
				Results: []mealMeQuoteResult{
					{ClientItemID: "item-1", SKU: "sku-1", Name: "Whole Milk", PriceCents: 450, InStock: true},
					{ClientItemID: "item-2", SKU: "sku-2", Name: "House Pick Sourdough", PriceCents: 700, InStock: true, Substituted: true, SubstitutionReason: "sourdough bread out of stock"},
				},
				CheckoutURL: "https://mealme.example/checkout/abc",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := newMealMeAdapter(testDeps(nil))
	cfg := testConfig(enums.ProviderMealMe)
	cfg.Mode = enums.ProviderModeReal
	cfg.BaseURL = server.URL
	cfg.APIKey = "mm-test-key"

	quote, err := adapter.GetQuote(context.Background(), testRequest("78701"), cfg)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}

	if authHeader != "Bearer mm-test-key" {
		t.Fatalf("expected bearer auth, got %q", authHeader)
	}
	if quote.Store == nil || quote.Store.ID != "mm-near" {
		t.Fatalf("expected nearest store, got %+v", quote.Store)
	}

	// item-3 was not in the upstream response, so it must surface as
	// unavailable rather than failing the quote.
	if len(quote.ItemAvailability) != 3 {
		t.Fatalf("expected 3 availability entries, got %d", len(quote.ItemAvailability))
	}
	byID := map[string]ItemAvailability{}
	for _, entry := range quote.ItemAvailability {
		byID[entry.ClientItemID] = entry
	}
	if byID["item-1"].Status != enums.AvailabilityFound {
		t.Fatalf("item-1 expected found, got %s", byID["item-1"].Status)
	}
	if byID["item-2"].Status != enums.AvailabilitySubstituted {
		t.Fatalf("item-2 expected substituted, got %s", byID["item-2"].Status)
	}
	if byID["item-3"].Status != enums.AvailabilityUnavailable {
		t.Fatalf("item-3 expected unavailable, got %s", byID["item-3"].Status)
	}

	subtotal := 450 + 700
	fees := bpsOf(subtotal, mealMeModel.serviceFeeBps) + mealMeModel.deliveryFeeCents
	tax := bpsOf(subtotal, mealMeModel.taxBps)
	if quote.Quote.SubtotalCents != subtotal {
		t.Fatalf("expected subtotal %d, got %d", subtotal, quote.Quote.SubtotalCents)
	}
	if quote.Quote.FeesCents != fees {
		t.Fatalf("expected fees %d, got %d", fees, quote.Quote.FeesCents)
	}
	if quote.Quote.TotalCents != subtotal+fees+tax {
		t.Fatalf("total %d does not equal %d", quote.Quote.TotalCents, subtotal+fees+tax)
	}
	if quote.AffiliateURL != "https://mealme.example/checkout/abc" {
		t.Fatalf("expected upstream checkout url, got %s", quote.AffiliateURL)
	}
}

func TestGetQuoteFallsBackOnRetryableFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var telemetryOut strings.Builder
	adapter := newWalmartAdapter(testDeps(&telemetryOut))
	cfg := testConfig(enums.ProviderWalmart)
	cfg.Mode = enums.ProviderModeRealWithFallback
	cfg.BaseURL = server.URL

	quote, err := adapter.GetQuote(context.Background(), testRequest("78701"), cfg)
	if err != nil {
		t.Fatalf("expected fallback quote, got %v", err)
	}
	if !strings.Contains(string(quote.Raw), `"mode":"mock"`) {
		t.Fatalf("expected mock-path quote, got %s", quote.Raw)
	}
	if !strings.Contains(telemetryOut.String(), string(telemetry.EventProviderFallback)) {
		t.Fatalf("expected provider_fallback event, got %q", telemetryOut.String())
	}
}

func TestGetQuoteDoesNotFallBackOnClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	var telemetryOut strings.Builder
	adapter := newKrogerAdapter(testDeps(&telemetryOut))
	cfg := testConfig(enums.ProviderKroger)
	cfg.Mode = enums.ProviderModeRealWithFallback
	cfg.BaseURL = server.URL

	_, err := adapter.GetQuote(context.Background(), testRequest("78701"), cfg)
	if err == nil {
		t.Fatal("expected client error to surface")
	}
	perr := AsError(err)
	if perr == nil || perr.ErrorCode() != CodeInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
	if telemetryOut.Len() != 0 {
		t.Fatalf("expected no fallback telemetry, got %q", telemetryOut.String())
	}
}

func TestGetQuoteNoStoresDoesNotFallBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(instacartRetailersResponse{})
	}))
	defer server.Close()

	adapter := newInstacartAdapter(testDeps(nil))
	cfg := testConfig(enums.ProviderInstacart)
	cfg.Mode = enums.ProviderModeRealWithFallback
	cfg.BaseURL = server.URL

	_, err := adapter.GetQuote(context.Background(), testRequest("78701"), cfg)
	if err == nil {
		t.Fatal("expected NO_STORES to surface")
	}
	if perr := AsError(err); perr == nil || perr.ErrorCode() != CodeNoStores {
		t.Fatalf("expected NO_STORES, got %v", err)
	}
}

func TestHealthCheckMockModeShortCircuits(t *testing.T) {
	adapter := newWalmartAdapter(testDeps(nil))
	cfg := testConfig(enums.ProviderWalmart)

	if err := adapter.HealthCheck(context.Background(), cfg); err != nil {
		t.Fatalf("mock-mode health check: %v", err)
	}
}

func TestHealthCheckRealMode(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != krogerHealthPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := newKrogerAdapter(testDeps(nil))
	cfg := testConfig(enums.ProviderKroger)
	cfg.Mode = enums.ProviderModeReal
	cfg.BaseURL = server.URL

	if err := adapter.HealthCheck(context.Background(), cfg); err != nil {
		t.Fatalf("health check: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits)
	}
}
