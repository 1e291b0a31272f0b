package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
)

const maxErrorBodyBytes = 2048

// upstreamClient is the one HTTP transport shared by every adapter's real
// path. Deadlines come from the caller's context; the client itself carries
// no global timeout.
type upstreamClient struct {
	http *http.Client
	logg *logger.Logger
}

func newUpstreamClient(logg *logger.Logger) *upstreamClient {
	return &upstreamClient{
		http: &http.Client{},
		logg: logg,
	}
}

func (c *upstreamClient) getJSON(ctx context.Context, providerID enums.ProviderID, cfg ProviderConfig, op, path string, query url.Values, out any) error {
	return c.do(ctx, providerID, cfg, op, http.MethodGet, path, query, nil, out)
}

func (c *upstreamClient) postJSON(ctx context.Context, providerID enums.ProviderID, cfg ProviderConfig, op, path string, body, out any) error {
	return c.do(ctx, providerID, cfg, op, http.MethodPost, path, nil, body, out)
}

func (c *upstreamClient) do(ctx context.Context, providerID enums.ProviderID, cfg ProviderConfig, op, method, path string, query url.Values, body, out any) error {
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return WrapError(providerID, CodeInvalidRequest, err, fmt.Sprintf("%s encode request", op), false)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return WrapError(providerID, CodeInvalidRequest, err, fmt.Sprintf("%s build request", op), false)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	c.log(ctx, "request", providerID, op, map[string]any{
		"method": method,
		"path":   path,
	})

	resp, err := c.http.Do(req)
	if err != nil {
		typed := classifyTransport(providerID, err, op)
		c.log(ctx, "error", providerID, op, map[string]any{"error": typed.Error()})
		return typed
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		typed := classifyStatus(providerID, resp.StatusCode, op).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": string(snippet)})
		c.log(ctx, "error", providerID, op, map[string]any{
			"status": resp.StatusCode,
			"error":  typed.Error(),
		})
		return typed
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			typed := WrapError(providerID, CodeUnavailable, err, fmt.Sprintf("%s decode response", op), true)
			c.log(ctx, "error", providerID, op, map[string]any{"error": typed.Error()})
			return typed
		}
	}

	c.log(ctx, "response", providerID, op, map[string]any{"status": resp.StatusCode})
	return nil
}

func (c *upstreamClient) log(ctx context.Context, phase string, providerID enums.ProviderID, op string, fields map[string]any) {
	if c == nil || c.logg == nil {
		return
	}
	logFields := map[string]any{
		"provider_id": providerID.String(),
		"operation":   op,
		"phase":       phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logg.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logg.Warn(ctx, fmt.Sprintf("upstream %s failed", op))
	default:
		c.logg.Debug(ctx, fmt.Sprintf("upstream %s %s", op, phase))
	}
}
