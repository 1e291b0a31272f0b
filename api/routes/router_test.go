package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/internal/providers"
	"github.com/pantryloop/pantryloop-backend/internal/routing"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/pagination"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubProviderSource struct{ configs []providers.ProviderConfig }

func (s stubProviderSource) EnabledSorted() []providers.ProviderConfig { return s.configs }

type stubRoutingService struct {
	resp *routing.RouteOrderResponse
	err  error
}

func (s stubRoutingService) RouteOrder(context.Context, routing.RouteOrderRequest) (*routing.RouteOrderResponse, error) {
	return s.resp, s.err
}

type stubTuningService struct {
	items  []models.WeightAdjustment
	cursor string
	err    error
}

func (s stubTuningService) ActiveWeights(context.Context) (types.Weights, bool, error) {
	return types.Weights{}, false, nil
}

func (s stubTuningService) RunAdjustment(context.Context, time.Time) (*models.WeightAdjustment, error) {
	return nil, nil
}

func (s stubTuningService) ListAdjustments(context.Context, pagination.Params) ([]models.WeightAdjustment, string, error) {
	return s.items, s.cursor, s.err
}

type routerFixture struct {
	dbP     stubPinger
	redisP  stubPinger
	source  stubProviderSource
	routing stubRoutingService
	tuning  stubTuningService
}

func (f routerFixture) build() http.Handler {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewRouter(cfg, logg, f.dbP, f.redisP, f.source, f.routing, f.tuning)
}

func routeBodyJSON() string {
	return `{
		"userId": "` + uuid.NewString() + `",
		"items": [{"id": "sku-1", "name": "Whole Milk", "quantity": 2}],
		"location": {"city": "Portland", "state": "OR", "postalCode": "97201", "country": "US"}
	}`
}

func TestHealthLive(t *testing.T) {
	router := routerFixture{}.build()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got := resp.Header().Get("X-Pantryloop-Env"); got != "test" {
		t.Fatalf("unexpected env header %q", got)
	}
}

func TestHealthReadyChecksDependencies(t *testing.T) {
	router := routerFixture{}.build()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}

	degraded := routerFixture{redisP: stubPinger{err: errors.New("conn refused")}}.build()
	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp = httptest.NewRecorder()
	degraded.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestRouteOrderReturnsSelectedProvider(t *testing.T) {
	decisionID := uuid.New()
	fixture := routerFixture{
		routing: stubRoutingService{resp: &routing.RouteOrderResponse{
			Success:           true,
			DecisionID:        decisionID,
			ProviderID:        enums.ProviderKroger,
			ConfirmationToken: "token",
		}},
	}
	router := fixture.build()

	req := httptest.NewRequest(http.MethodPost, "/v1/orders/route", strings.NewReader(routeBodyJSON()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.Code, resp.Body.String())
	}

	var decoded routing.RouteOrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !decoded.Success || decoded.DecisionID != decisionID {
		t.Fatalf("unexpected response %+v", decoded)
	}
}

func TestRouteOrderAllProvidersFailed(t *testing.T) {
	fixture := routerFixture{
		routing: stubRoutingService{err: &routing.RouterFailure{
			DecisionID:         uuid.New(),
			AttemptedProviders: []enums.ProviderID{enums.ProviderKroger, enums.ProviderWalmart},
			Failures: types.ProviderFailures{
				{ProviderID: enums.ProviderKroger, Code: "TIMEOUT", Message: "quote timed out", Retryable: true},
				{ProviderID: enums.ProviderWalmart, Code: "NO_STORES", Message: "no serviceable store", Retryable: false},
			},
		}},
	}
	router := fixture.build()

	req := httptest.NewRequest(http.MethodPost, "/v1/orders/route", strings.NewReader(routeBodyJSON()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}

	var envelope struct {
		Success  bool            `json:"success"`
		Provider json.RawMessage `json:"provider"`
		Errors   []struct {
			ProviderID string `json:"providerId"`
			Error      string `json:"error"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal failure envelope: %v", err)
	}
	if envelope.Success {
		t.Fatal("expected success=false")
	}
	if string(envelope.Provider) != "null" {
		t.Fatalf("expected provider null, got %s", envelope.Provider)
	}
	if len(envelope.Errors) != 2 || envelope.Errors[0].ProviderID != "kroger" {
		t.Fatalf("unexpected errors %+v", envelope.Errors)
	}
}

func TestRouteOrderRejectsEmptyItems(t *testing.T) {
	router := routerFixture{}.build()

	body := `{"items": [], "location": {"city": "Portland", "postalCode": "97201", "country": "US"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/route", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body %s", resp.Code, resp.Body.String())
	}
}

func TestProvidersListsEnabledFleet(t *testing.T) {
	fixture := routerFixture{
		source: stubProviderSource{configs: []providers.ProviderConfig{
			{ID: enums.ProviderKroger, Name: "Kroger", Enabled: true},
			{ID: enums.ProviderWalmart, Name: "Walmart", Enabled: true},
		}},
	}
	router := fixture.build()

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Providers []providers.ProviderConfig `json:"providers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(envelope.Data.Providers))
	}
}

func TestTuningAdjustmentsPaginates(t *testing.T) {
	fixture := routerFixture{
		tuning: stubTuningService{
			items:  []models.WeightAdjustment{{ID: uuid.New(), Reason: "on-time rate fell"}},
			cursor: "next-cursor",
		},
	}
	router := fixture.build()

	req := httptest.NewRequest(http.MethodGet, "/v1/tuning/adjustments?limit=10", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			Items  []models.WeightAdjustment `json:"items"`
			Cursor string                    `json:"cursor"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Cursor != "next-cursor" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router := routerFixture{}.build()
	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
