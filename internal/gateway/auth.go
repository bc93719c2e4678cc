package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := map[string]string{"email": email, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signin", "auth/signin", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil || resp.Session.AccessToken == "" {
		return nil, fmt.Errorf("gateway sign-in response missing session")
	}
	if resp.User == nil {
		return nil, fmt.Errorf("gateway sign-in response missing user")
	}
	return &resp, nil
}

// SignUp registers a new account. redirectTo is where the verification email
// should send the browser. Session may be nil when the flow requires email
// verification before issuing tokens.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*AuthResponse, error) {
	req := map[string]string{"email": email, "password": password, "redirect_to": redirectTo}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signup", "auth/signup", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("gateway sign-up response missing user")
	}
	return &resp, nil
}

// SignOut invalidates the server-side session for token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return ErrAuthRequired
	}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/signout", "auth/signout", token, nil, nil)
}

// OAuthURL requests the provider authorization URL for a full-page redirect.
func (c *Client) OAuthURL(ctx context.Context, provider, redirectTo string) (string, error) {
	path := fmt.Sprintf("/api/v1/auth/oauth/%s?redirect_to=%s", url.PathEscape(provider), url.QueryEscape(redirectTo))
	var resp oauthURLResponse
	if err := c.do(ctx, http.MethodGet, path, "auth/oauth", "", nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("gateway returned empty authorization URL")
	}
	return resp.URL, nil
}

// ExchangeCallback trades a provider authorization code for a session.
func (c *Client) ExchangeCallback(ctx context.Context, code string) (*AuthResponse, error) {
	path := "/api/v1/auth/callback?code=" + url.QueryEscape(code)
	var resp AuthResponse
	if err := c.do(ctx, http.MethodGet, path, "auth/callback", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Session resolves the user behind token. A 401 signals an invalid or
// expired token.
func (c *Client) Session(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var resp sessionLookupResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/session", "auth/session", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("gateway session response missing user")
	}
	return resp.User, nil
}

// RefreshToken exchanges a refresh token for a fresh session.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	req := map[string]string{"refresh_token": refreshToken}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh-token", "auth/refresh-token", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil || resp.Session.AccessToken == "" {
		return nil, fmt.Errorf("gateway refresh response missing session")
	}
	return &resp, nil
}

// CheckVerification asks the dedicated endpoint whether the user's email is
// verified; the flag embedded in sign-in responses may be stale.
func (c *Client) CheckVerification(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrAuthRequired
	}
	var resp verificationResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/check-verification", "auth/check-verification", token, nil, &resp); err != nil {
		return false, err
	}
	return resp.EmailVerified, nil
}

// ResendVerification triggers a fresh verification email.
func (c *Client) ResendVerification(ctx context.Context, email, redirectTo string) error {
	req := map[string]string{"email": email, "redirect_to": redirectTo}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/resend-verification", "auth/resend-verification", "", req, nil)
}

// VerifyEmail confirms an email address from a verification link.
func (c *Client) VerifyEmail(ctx context.Context, verifyToken, tokenHash, typ string) error {
	req := map[string]string{"token": verifyToken, "type": typ}
	if tokenHash != "" {
		req["token_hash"] = tokenHash
	}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/verify-email", "auth/verify-email", "", req, nil)
}

// ForgotPassword starts a password reset flow.
func (c *Client) ForgotPassword(ctx context.Context, email, redirectTo string) error {
	req := map[string]string{"email": email, "redirect_to": redirectTo}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/forgot-password", "auth/forgot-password", "", req, nil)
}

// ResetPassword sets a new password, optionally under a recovery token.
func (c *Client) ResetPassword(ctx context.Context, newPassword, accessToken string) error {
	req := map[string]string{"new_password": newPassword}
	if accessToken != "" {
		req["access_token"] = accessToken
	}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/reset-password", "auth/reset-password", "", req, nil)
}
