// Package gateway is the typed client for the API gateway that fronts all
// backend capabilities: auth, user profiles, diagnostics, and roadmaps.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize bounds gateway response bodies (4 MB).
const maxResponseSize = 4 << 20

// MetricsRecorder is an optional interface for recording upstream metrics.
type MetricsRecorder interface {
	IncGatewayRequests(endpoint, method string, statusCode int)
	ObserveGatewayDuration(endpoint string, seconds float64)
}

// Client calls the gateway. It attaches bearer tokens and normalizes error
// responses; it never retries or refreshes. That policy belongs to the
// session manager.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics MetricsRecorder
}

// New creates a Client for the gateway at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SetMetrics sets the optional metrics recorder.
func (c *Client) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// do executes one gateway call. token may be empty for unauthenticated
// endpoints; in and out may be nil. endpoint is the unparameterized path
// used as the metrics label.
func (c *Client) do(ctx context.Context, method, path, endpoint, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building gateway request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)

	if c.metrics != nil {
		c.metrics.ObserveGatewayDuration(endpoint, latency.Seconds())
	}

	if err != nil {
		if c.metrics != nil {
			c.metrics.IncGatewayRequests(endpoint, method, 0)
		}
		c.logger.Error("gateway request failed",
			"endpoint", endpoint,
			"method", method,
			"error", err,
		)
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.IncGatewayRequests(endpoint, method, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.asHTTPError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding gateway response: %w", err)
		}
	}
	return nil
}

// asHTTPError extracts the "detail" field from a JSON error body, falling
// back to the HTTP status text when the body isn't JSON.
func (c *Client) asHTTPError(status int, body []byte) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	detail := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		detail = payload.Detail
	}
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &HTTPError{Status: status, Detail: detail}
}
