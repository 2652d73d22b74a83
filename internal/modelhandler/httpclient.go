package modelhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// httpClient is the shared transport every HTTP-backed backend in this
// package (embedding, caption, LLM) posts through, instrumented with
// otelhttp so outbound model calls produce client spans the way the
// teacher's internal/observability.NewHTTPClient wraps its own HTTP
// clients.
var httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

// HTTPClientConfig describes a generic inference HTTP endpoint, the shape
// the teacher's embedding/caption/LLM clients all share: a base URL plus
// path, an auth header, and a request timeout.
type HTTPClientConfig struct {
	BaseURL   string
	Path      string
	APIHeader string
	APIKey    string
	Model     string
	Timeout   time.Duration
}

// postJSON posts body to cfg's endpoint and decodes the JSON response into
// out. It is the shared request path for every HTTP-backed backend in this
// package (embedding, caption, summarisation).
func postJSON(ctx context.Context, cfg HTTPClientConfig, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("modelhandler: marshal request: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, cfg.BaseURL+cfg.Path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("modelhandler: build request: %w", err)
	}
	if cfg.APIHeader == "Authorization" && cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	} else if cfg.APIHeader != "" && cfg.APIKey != "" {
		req.Header.Set(cfg.APIHeader, cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("modelhandler: request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("modelhandler: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("modelhandler: %s: %s", resp.Status, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		n := len(bodyBytes)
		if n > 200 {
			n = 200
		}
		return fmt.Errorf("modelhandler: parse response (body: %s): %w", string(bodyBytes[:n]), err)
	}
	return nil
}

// Ping issues a minimal request to check the endpoint is reachable. The
// caption, embedding and LLM backends use it as their Load step.
func Ping(ctx context.Context, cfg HTTPClientConfig) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("modelhandler: ping %s: %w", cfg.BaseURL, err)
	}
	resp.Body.Close()
	return nil
}
