package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"wayfinder/internal/config"
	"wayfinder/internal/gateway"
)

const (
	stateCookieName   = "oauth_state"
	stateCookieMaxAge = 300
)

// OIDCExchanger performs the code exchange directly against an OpenID
// Connect provider, bypassing the gateway. Used when the deployment talks
// to its identity provider itself.
type OIDCExchanger struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCExchanger discovers the provider from its issuer URL.
func NewOIDCExchanger(ctx context.Context, cfg config.OIDCConfig) (*OIDCExchanger, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discovering oidc provider %s: %w", cfg.Issuer, err)
	}
	return &OIDCExchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthURL returns the provider authorization URL bound to state.
func (e *OIDCExchanger) AuthURL(state string) string {
	return e.oauth.AuthCodeURL(state)
}

// Exchange redeems the authorization code and verifies the ID token.
func (e *OIDCExchanger) Exchange(ctx context.Context, code string) (*gateway.AuthResponse, error) {
	tok, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, fmt.Errorf("token response carried no id_token")
	}
	idToken, err := e.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verifying id token: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decoding id token claims: %w", err)
	}

	return &gateway.AuthResponse{
		Session: &gateway.Session{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.Expiry.Unix(),
			TokenType:    tok.TokenType,
		},
		User: &gateway.User{
			ID:            claims.Subject,
			Email:         claims.Email,
			EmailVerified: claims.EmailVerified,
		},
	}, nil
}

// SetStateCookie generates a fresh state value, stores it in a short-lived
// cookie, and returns it for inclusion in the authorization URL.
func SetStateCookie(w http.ResponseWriter, secure bool) string {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}

// consumeStateCookie compares got against the state cookie and removes the
// cookie regardless of the outcome. A state is valid exactly once.
func consumeStateCookie(w http.ResponseWriter, r *http.Request, got string) bool {
	c, err := r.Cookie(stateCookieName)
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return err == nil && got != "" && c.Value == got
}
