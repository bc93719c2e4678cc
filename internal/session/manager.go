// Package session owns the browser session lifecycle: sign-in/up/out, OAuth
// hand-offs, token refresh, and resolution of the current user. All state
// lives in an explicit per-request Manager exposed through Snapshot copies,
// never ambient globals.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wayfinder/internal/gateway"
	"wayfinder/internal/token"
)

// Error is an expected, user-presentable failure. Operations that can fail
// for ordinary reasons (wrong password, taken email) report it in their
// Result instead of returning a Go error.
type Error struct {
	Message string `json:"message"`
}

// Result is the outcome of a sign-in or sign-up attempt.
type Result struct {
	Err           *Error `json:"error"`
	EmailVerified bool   `json:"email_verified"`
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	User          *gateway.User    `json:"user"`
	Profile       *gateway.Profile `json:"profile"`
	EmailVerified *bool            `json:"email_verified"`
	Authenticated bool             `json:"authenticated"`
	Loading       bool             `json:"loading"`
}

// MetricsRecorder is an optional interface for recording refresh outcomes.
type MetricsRecorder interface {
	IncAuthRefresh(status string)
}

// RefreshGate serializes token refreshes per device, so two in-flight
// requests from the same browser cannot race to consume the same refresh
// token (many providers invalidate a refresh token after first use).
type RefreshGate struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRefreshGate() *RefreshGate {
	return &RefreshGate{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-device refresh lock and returns its release func.
func (g *RefreshGate) Lock(deviceID string) func() {
	g.mu.Lock()
	l, ok := g.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[deviceID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Manager drives one request's session operations against the gateway.
type Manager struct {
	client  *gateway.Client
	tokens  *token.Store
	gate    *RefreshGate
	origin  string
	logger  *slog.Logger
	metrics MetricsRecorder

	user          *gateway.User
	profile       *gateway.Profile
	emailVerified *bool
	resolved      bool
}

// NewManager creates a Manager. origin is the externally visible origin of
// this server, used to build redirect_to URLs. gate may be shared across
// managers; nil disables refresh serialization.
func NewManager(client *gateway.Client, tokens *token.Store, gate *RefreshGate, origin string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{client: client, tokens: tokens, gate: gate, origin: origin, logger: logger}
}

// SetMetrics sets the optional metrics recorder.
func (m *Manager) SetMetrics(rec MetricsRecorder) {
	m.metrics = rec
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		User:          m.user,
		Profile:       m.profile,
		EmailVerified: m.emailVerified,
		Authenticated: m.user != nil && m.tokens.Access() != "",
		Loading:       !m.resolved,
	}
}

// SignIn authenticates with email and password. Expected failures come back
// in the Result; nothing is persisted on failure.
func (m *Manager) SignIn(ctx context.Context, email, password string) Result {
	resp, err := m.client.SignIn(ctx, email, password)
	if err != nil {
		if gateway.IsInfrastructure(err) {
			m.logger.Error("sign-in failed", "error", err)
		}
		return Result{Err: &Error{Message: gateway.Detail(err)}}
	}

	if err := m.storeSession(resp.Session, resp.User); err != nil {
		m.logger.Error("persisting session failed", "error", err)
		return Result{Err: &Error{Message: "could not persist session"}}
	}

	// The flag embedded in the sign-in response may be stale; the dedicated
	// endpoint is authoritative.
	verified := resp.User.EmailVerified
	if v, err := m.client.CheckVerification(ctx, resp.Session.AccessToken); err == nil {
		verified = v
	}
	m.setEmailVerified(verified)

	return Result{EmailVerified: verified}
}

// SignUp registers a new account. Some flows require email verification
// before issuing tokens; then the user is set without a session.
func (m *Manager) SignUp(ctx context.Context, email, password string) Result {
	resp, err := m.client.SignUp(ctx, email, password, m.origin+"/verify-email")
	if err != nil {
		if gateway.IsInfrastructure(err) {
			m.logger.Error("sign-up failed", "error", err)
		}
		return Result{Err: &Error{Message: gateway.Detail(err)}}
	}

	if resp.Session != nil && resp.Session.AccessToken != "" {
		if err := m.storeSession(resp.Session, resp.User); err != nil {
			m.logger.Error("persisting session failed", "error", err)
			return Result{Err: &Error{Message: "could not persist session"}}
		}
	} else {
		m.user = resp.User
	}
	m.setEmailVerified(resp.User.EmailVerified)

	return Result{EmailVerified: resp.User.EmailVerified}
}

// SignOut invalidates the server-side session best-effort, then
// unconditionally clears local state.
func (m *Manager) SignOut(ctx context.Context) {
	if tok := m.tokens.Access(); tok != "" {
		if err := m.client.SignOut(ctx, tok); err != nil {
			m.logger.Warn("gateway sign-out failed", "error", err)
		}
	}
	m.clearSession()
}

// OAuthURL returns the provider authorization URL for a full-page redirect.
// Unlike sign-in, failures here propagate to the caller.
func (m *Manager) OAuthURL(ctx context.Context, provider string) (string, error) {
	return m.client.OAuthURL(ctx, provider, m.origin+"/auth/callback")
}

// Resolve establishes the session state for this request. A non-nil cred is
// a one-time external credential (the OAuth handoff) consumed before
// anything else; otherwise the token store decides. With no token at all the
// manager completes unauthenticated without touching the network.
func (m *Manager) Resolve(ctx context.Context, cred *ExternalCredential) Snapshot {
	defer func() { m.resolved = true }()

	if cred != nil {
		if err := m.tokens.Store(cred.AccessToken, cred.RefreshToken, time.Time{}); err != nil {
			m.logger.Warn("storing external credential failed", "error", err)
		}
		if err := m.checkSession(ctx); err != nil {
			m.logger.Warn("external credential rejected", "error", err)
			m.clearSession()
		}
		return m.Snapshot()
	}

	if m.tokens.Access() == "" {
		return m.Snapshot()
	}

	if m.tokens.IsExpired() && m.tokens.Refresh() != "" {
		if err := m.refreshAccessToken(ctx); err != nil {
			return m.Snapshot() // already cleared
		}
	}

	if err := m.checkSession(ctx); err != nil {
		m.logger.Warn("session check failed", "error", err)
		m.clearSession()
	}
	return m.Snapshot()
}

// Do runs call with the current access token, refreshing and retrying
// exactly once on a 401. This is the single place the refresh-and-retry
// policy lives.
func (m *Manager) Do(ctx context.Context, call func(token string) error) error {
	tok := m.tokens.Access()
	if tok == "" {
		return gateway.ErrAuthRequired
	}

	err := call(tok)
	if !gateway.IsUnauthorized(err) {
		return err
	}

	if refreshErr := m.refreshAccessToken(ctx); refreshErr != nil {
		return err
	}
	return call(m.tokens.Access())
}

// RefreshProfile fetches the profile for the current user. Without a user it
// clears the profile; fetch errors are logged and swallowed into nil.
func (m *Manager) RefreshProfile(ctx context.Context) {
	if m.user == nil {
		m.profile = nil
		return
	}

	var p *gateway.Profile
	err := m.Do(ctx, func(tok string) error {
		var err error
		p, err = m.client.Profile(ctx, tok)
		return err
	})
	if err != nil {
		m.logger.Warn("fetching profile failed", "error", err)
		m.profile = nil
		return
	}
	m.profile = p
}

// checkSession resolves the user behind the stored token, then loads the
// profile and the authoritative verification flag. A session whose user
// cannot be resolved must be cleared by the caller, leaving no orphaned
// tokens behind.
func (m *Manager) checkSession(ctx context.Context) error {
	var user *gateway.User
	err := m.Do(ctx, func(tok string) error {
		u, err := m.client.Session(ctx, tok)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return err
	}

	m.user = user
	m.setEmailVerified(user.EmailVerified)
	m.RefreshProfile(ctx)
	if v, err := m.client.CheckVerification(ctx, m.tokens.Access()); err == nil {
		m.setEmailVerified(v)
	}
	return nil
}

// refreshAccessToken exchanges the refresh token for a new session. On any
// failure the session is cleared; there is no second attempt.
func (m *Manager) refreshAccessToken(ctx context.Context) error {
	if m.gate != nil {
		unlock := m.gate.Lock(m.tokens.DeviceID())
		defer unlock()
	}

	refresh := m.tokens.Refresh()
	if refresh == "" {
		m.recordRefresh("no_refresh_token")
		m.clearSession()
		return gateway.ErrAuthRequired
	}

	resp, err := m.client.RefreshToken(ctx, refresh)
	if err != nil {
		m.logger.Warn("token refresh failed", "error", err)
		m.recordRefresh("failure")
		m.clearSession()
		return err
	}

	if err := m.storeSession(resp.Session, resp.User); err != nil {
		m.recordRefresh("failure")
		m.clearSession()
		return err
	}
	m.recordRefresh("success")
	return nil
}

func (m *Manager) storeSession(sess *gateway.Session, user *gateway.User) error {
	var expiresAt time.Time
	if sess.ExpiresAt > 0 {
		expiresAt = time.Unix(sess.ExpiresAt, 0)
	} else if sess.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(sess.ExpiresIn) * time.Second)
	}

	if err := m.tokens.Store(sess.AccessToken, sess.RefreshToken, expiresAt); err != nil {
		return err
	}
	m.user = user
	return nil
}

func (m *Manager) clearSession() {
	m.tokens.Clear()
	m.user = nil
	m.profile = nil
	m.emailVerified = nil
}

func (m *Manager) setEmailVerified(v bool) {
	m.emailVerified = &v
}

func (m *Manager) recordRefresh(status string) {
	if m.metrics != nil {
		m.metrics.IncAuthRefresh(status)
	}
}
