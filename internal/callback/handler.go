// Package callback terminates the OAuth redirect leg. The provider (or the
// gateway acting for it) sends the browser back here with either an
// authorization code or an error; the handler exchanges the code for a
// session and forwards the browser to its landing page with a one-time
// token handoff in the query string.
package callback

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"wayfinder/internal/gateway"
)

// Exchanger trades an authorization code for a session.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*gateway.AuthResponse, error)
}

// GatewayExchanger delegates the code exchange to the API gateway, the
// default mode of operation.
type GatewayExchanger struct {
	Client *gateway.Client
}

func (g *GatewayExchanger) Exchange(ctx context.Context, code string) (*gateway.AuthResponse, error) {
	return g.Client.ExchangeCallback(ctx, code)
}

// Handler serves the OAuth callback route.
type Handler struct {
	exchanger    Exchanger
	logger       *slog.Logger
	requireState bool
}

// New creates a Handler. requireState enables verification of the state
// cookie set when the authorization URL was issued; the gateway-mediated
// flow manages state itself, so only the direct provider mode sets it.
func New(ex Exchanger, logger *slog.Logger, requireState bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{exchanger: ex, logger: logger, requireState: requireState}
}

// callbackParams is what the provider redirect may carry, in the query
// string or, for implicit-style providers, in the URL fragment.
type callbackParams struct {
	code    string
	state   string
	errCode string
	errDesc string
}

func parseParams(u *url.URL) callbackParams {
	read := func(v url.Values) callbackParams {
		return callbackParams{
			code:    v.Get("code"),
			state:   v.Get("state"),
			errCode: v.Get("error"),
			errDesc: v.Get("error_description"),
		}
	}

	p := read(u.Query())
	if p.code != "" || p.errCode != "" {
		return p
	}
	if u.Fragment != "" {
		if v, err := url.ParseQuery(u.Fragment); err == nil {
			return read(v)
		}
	}
	return p
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := parseParams(r.URL)

	if p.errCode != "" {
		h.logger.Warn("provider returned an error", "error", p.errCode, "description", p.errDesc)
		msg := p.errDesc
		if msg == "" {
			msg = "The provider rejected the sign-in attempt."
		}
		h.redirectLogin(w, r, "oauth_error", msg)
		return
	}

	if p.code == "" {
		h.logger.Warn("callback arrived without an authorization code", "url", r.URL.String())
		h.redirectLogin(w, r, "no_code", "No authorization code received from the provider.")
		return
	}

	if h.requireState && !consumeStateCookie(w, r, p.state) {
		h.logger.Warn("state parameter did not match the state cookie")
		h.redirectLogin(w, r, "oauth_error", "Sign-in state did not match. Please try again.")
		return
	}

	resp, err := h.exchanger.Exchange(r.Context(), p.code)
	if err != nil {
		h.logger.Error("code exchange failed", "error", err)
		h.redirectLogin(w, r, "oauth_failed", "Could not complete the sign-in. Please try again.")
		return
	}
	if resp.Session == nil || resp.Session.AccessToken == "" {
		h.logger.Error("code exchange returned no session token")
		h.redirectLogin(w, r, "oauth_failed", "Could not complete the sign-in. Please try again.")
		return
	}

	target := "/dashboard"
	if resp.User != nil && !resp.User.EmailVerified {
		target = "/verify-email"
	}

	q := url.Values{}
	q.Set("token", resp.Session.AccessToken)
	if resp.Session.RefreshToken != "" {
		q.Set("refresh_token", resp.Session.RefreshToken)
	}
	if resp.User != nil {
		q.Set("user_id", resp.User.ID)
	}

	h.logger.Info("oauth sign-in completed", "target", target)
	http.Redirect(w, r, target+"?"+q.Encode(), http.StatusFound)
}

func (h *Handler) redirectLogin(w http.ResponseWriter, r *http.Request, code, message string) {
	q := url.Values{}
	q.Set("error", code)
	q.Set("message", message)
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusFound)
}
