package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
)

func testUpstream() *upstreamClient {
	return newUpstreamClient(logger.New(logger.Options{ServiceName: "upstream-test", Output: io.Discard}))
}

func upstreamConfig(baseURL, apiKey string) ProviderConfig {
	cfg := testConfig(enums.ProviderMealMe)
	cfg.BaseURL = baseURL
	cfg.APIKey = apiKey
	return cfg
}

func TestUpstreamStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		code      string
		retryable bool
	}{
		{http.StatusUnauthorized, CodeUnauthorized, false},
		{http.StatusForbidden, CodeUnauthorized, false},
		{http.StatusNotFound, CodeInvalidRequest, false},
		{http.StatusUnprocessableEntity, CodeInvalidRequest, false},
		{http.StatusInternalServerError, CodeUpstream5xx, true},
		{http.StatusBadGateway, CodeUpstream5xx, true},
		{http.StatusServiceUnavailable, CodeUnavailable, true},
	}

	for _, tc := range cases {
		status := tc.status
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		err := testUpstream().getJSON(context.Background(), enums.ProviderMealMe,
			upstreamConfig(server.URL, ""), "probe", "/v1/probe", nil, nil)
		server.Close()

		perr := AsError(err)
		if perr == nil {
			t.Fatalf("status %d: expected typed error, got %v", tc.status, err)
		}
		if perr.ErrorCode() != tc.code {
			t.Fatalf("status %d: expected %s, got %s", tc.status, tc.code, perr.ErrorCode())
		}
		if perr.IsRetryable() != tc.retryable {
			t.Fatalf("status %d: expected retryable=%v", tc.status, tc.retryable)
		}
	}
}

func TestUpstreamErrorCarriesBodySnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"quote engine exploded"}`))
	}))
	defer server.Close()

	err := testUpstream().getJSON(context.Background(), enums.ProviderKroger,
		upstreamConfig(server.URL, ""), "quote_cart", "/v1/cart/quote", nil, nil)

	perr := AsError(err)
	if perr == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := perr.ErrorDetails().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", perr.ErrorDetails())
	}
	if details["status"] != http.StatusInternalServerError {
		t.Fatalf("expected status detail, got %v", details["status"])
	}
	body, _ := details["body"].(string)
	if !strings.Contains(body, "quote engine exploded") {
		t.Fatalf("expected body snippet, got %q", body)
	}
}

func TestUpstreamAuthHeader(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testUpstream()
	if err := client.getJSON(context.Background(), enums.ProviderWalmart,
		upstreamConfig(server.URL, "wm-key"), "probe", "/v3/probe", nil, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if header != "Bearer wm-key" {
		t.Fatalf("expected bearer header, got %q", header)
	}

	if err := client.getJSON(context.Background(), enums.ProviderWalmart,
		upstreamConfig(server.URL, ""), "probe", "/v3/probe", nil, nil); err != nil {
		t.Fatalf("get without key: %v", err)
	}
	if header != "" {
		t.Fatalf("expected no auth header without a key, got %q", header)
	}
}

func TestUpstreamQueryEncoding(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	query := url.Values{"postal_code": {"78701"}, "limit": {"5"}}
	if err := testUpstream().getJSON(context.Background(), enums.ProviderMealMe,
		upstreamConfig(server.URL+"/", ""), "find_stores", "/v1/stores/search", query, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotQuery.Get("postal_code") != "78701" || gotQuery.Get("limit") != "5" {
		t.Fatalf("unexpected query %v", gotQuery)
	}
}

func TestUpstreamNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := testUpstream().getJSON(context.Background(), enums.ProviderInstacart,
		upstreamConfig(server.URL, ""), "probe", "/idp/v1/probe", nil, nil)

	perr := AsError(err)
	if perr == nil || perr.ErrorCode() != CodeNetworkError {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
	if !perr.IsRetryable() {
		t.Fatal("network errors must be retryable")
	}
	if perr.Unwrap() == nil {
		t.Fatal("expected the transport error as cause")
	}
}

func TestUpstreamContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := testUpstream().getJSON(ctx, enums.ProviderMealMe,
		upstreamConfig(server.URL, ""), "probe", "/v1/probe", nil, nil)

	perr := AsError(err)
	if perr == nil || perr.ErrorCode() != CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if !perr.IsRetryable() {
		t.Fatal("timeouts must be retryable")
	}
}

func TestUpstreamDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stores": [`))
	}))
	defer server.Close()

	var out mealMeStoresResponse
	err := testUpstream().getJSON(context.Background(), enums.ProviderMealMe,
		upstreamConfig(server.URL, ""), "find_stores", "/v1/stores/search", nil, &out)

	perr := AsError(err)
	if perr == nil || perr.ErrorCode() != CodeUnavailable {
		t.Fatalf("expected UNAVAILABLE on decode failure, got %v", err)
	}
	if !perr.IsRetryable() {
		t.Fatal("decode failures must be retryable")
	}
}
