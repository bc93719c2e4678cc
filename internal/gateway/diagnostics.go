package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// StartDiagnostic creates a new diagnostic session or resumes an unfinished
// one for the authenticated user.
func (c *Client) StartDiagnostic(ctx context.Context, token string) (*StartDiagnosticResponse, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var resp StartDiagnosticResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/diagnostics/start", "diagnostics/start", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("gateway diagnostic response missing session_id")
	}
	return &resp, nil
}

// SubmitResponses sends the full answer map for verification.
func (c *Client) SubmitResponses(ctx context.Context, token, sessionID string, responses map[string]string) (*SubmitResponsesResponse, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	path := fmt.Sprintf("/api/v1/diagnostics/%s/respond", url.PathEscape(sessionID))
	req := map[string]any{"responses": responses}
	var resp SubmitResponsesResponse
	if err := c.do(ctx, http.MethodPost, path, "diagnostics/respond", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteDiagnostic marks the session finished once the gateway has judged
// the answers sufficient.
func (c *Client) CompleteDiagnostic(ctx context.Context, token, sessionID string) (*CompleteDiagnosticResponse, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	path := fmt.Sprintf("/api/v1/diagnostics/%s/complete", url.PathEscape(sessionID))
	var resp CompleteDiagnosticResponse
	if err := c.do(ctx, http.MethodPost, path, "diagnostics/complete", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
