package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"wayfinder/internal/callback"
	"wayfinder/internal/session"
)

// handleSession handles GET /api/v1/session. It resolves the current
// session, consuming a pending credential handoff if the page passed one
// through.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	mgr, _ := s.manager(w, r)
	cred := session.CredentialFromQuery(r.URL.Query())
	snap := mgr.Resolve(r.Context(), cred)
	writeJSON(w, http.StatusOK, snap)
}

// handleSignIn handles POST /api/v1/session.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	mgr, _ := s.manager(w, r)
	res := mgr.SignIn(r.Context(), req.Email, req.Password)
	if res.Err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", res.Err.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":        mgr.Snapshot(),
		"email_verified": res.EmailVerified,
	})
}

// handleSignUp handles POST /api/v1/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	mgr, _ := s.manager(w, r)
	res := mgr.SignUp(r.Context(), req.Email, req.Password)
	if res.Err != nil {
		writeError(w, http.StatusUnprocessableEntity, "signup_failed", res.Err.Message)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session":        mgr.Snapshot(),
		"email_verified": res.EmailVerified,
	})
}

// handleSignOut handles DELETE /api/v1/session.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	mgr, _ := s.manager(w, r)
	mgr.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleOAuthURL handles GET /api/v1/oauth/{provider}/url. In direct
// provider mode the authorization URL is built locally and bound to a fresh
// state cookie; otherwise the gateway supplies it.
func (s *Server) handleOAuthURL(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "provider is required")
		return
	}

	if s.oidc != nil {
		secure := s.cfg.Cookies.ForceSecure || r.TLS != nil
		state := callback.SetStateCookie(w, secure)
		writeJSON(w, http.StatusOK, map[string]string{"url": s.oidc.AuthURL(state)})
		return
	}

	mgr, _ := s.manager(w, r)
	url, err := mgr.OAuthURL(r.Context(), provider)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleResendVerification handles POST /api/v1/verification/resend.
func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email is required")
		return
	}

	if err := s.gw.ResendVerification(r.Context(), req.Email, s.cfg.Web.Origin+"/verify-email"); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// handleVerifyEmail handles POST /api/v1/verification.
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token     string `json:"token"`
		TokenHash string `json:"token_hash"`
		Type      string `json:"type"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Token == "" && req.TokenHash == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "a verification token is required")
		return
	}
	if req.Type == "" {
		req.Type = "signup"
	}

	if err := s.gw.VerifyEmail(r.Context(), req.Token, req.TokenHash, req.Type); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// handleForgotPassword handles POST /api/v1/password/forgot.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email is required")
		return
	}

	if err := s.gw.ForgotPassword(r.Context(), req.Email, s.cfg.Web.Origin+"/reset-password"); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// handleResetPassword handles POST /api/v1/password/reset. The recovery
// token from the reset link takes precedence; an authenticated session's
// own token serves the signed-in password change.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"new_password"`
		AccessToken string `json:"access_token"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "new_password is required")
		return
	}

	accessToken := req.AccessToken
	if accessToken == "" {
		_, st := s.manager(w, r)
		accessToken = st.Access()
	}

	if err := s.gw.ResetPassword(r.Context(), req.NewPassword, accessToken); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}
