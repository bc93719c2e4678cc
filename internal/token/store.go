// Package token persists access/refresh tokens across requests using a
// dual-write strategy: short-lived cookies readable by the route guard, plus
// a durable fallback store for browsers that drop cookies.
package token

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	accessCookie  = "auth_token"
	refreshCookie = "refresh_token"
	expiryCookie  = "token_expires_at"
	deviceCookie  = "wf_device"

	// CookieMaxAge is fixed at 5 days regardless of the token's semantic
	// expiry, which travels separately in the expiry cookie and drives
	// proactive refresh.
	CookieMaxAge = 5 * 24 * time.Hour

	// RefreshThreshold is how close to expiry a token may get before it is
	// considered expired and proactively refreshed.
	RefreshThreshold = 5 * time.Minute
)

// AccessCookieName is exported for the route guard, which decides solely on
// cookie presence.
const AccessCookieName = accessCookie

// Options configures cookie attributes for a Store.
type Options struct {
	Domain      string
	ForceSecure bool
	Now         func() time.Time // defaults to time.Now
}

// Store reads and writes one request's token set. Construct a fresh Store per
// request; it is not safe for concurrent use.
type Store struct {
	w        http.ResponseWriter
	r        *http.Request
	fallback Fallback
	opts     Options
	now      func() time.Time

	deviceID string

	// Values written during this request, visible to same-request reads
	// before the response cookies ever reach the browser.
	cached  *Record
	cleared bool

	fallbackRec    *Record
	fallbackLoaded bool
}

// New creates a Store bound to the given request/response pair. A nil
// fallback disables the secondary store.
func New(w http.ResponseWriter, r *http.Request, fallback Fallback, opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{w: w, r: r, fallback: fallback, opts: opts, now: now}
	s.deviceID = s.ensureDeviceID()
	return s
}

// DeviceID returns the stable identifier for this browser, used to key the
// fallback store and to serialize concurrent refreshes.
func (s *Store) DeviceID() string {
	return s.deviceID
}

// Store persists the token set to both backing stores. A zero expiresAt means
// the gateway supplied no expiry metadata. Omitted refresh or expiry values
// keep what was stored before, so a refresh response that carries only a new
// access token cannot wipe the persisted refresh token from the fallback.
func (s *Store) Store(access, refresh string, expiresAt time.Time) error {
	if refresh == "" {
		refresh = s.Refresh()
	}
	if expiresAt.IsZero() {
		expiresAt = s.ExpiresAt()
	}
	rec := Record{Access: access, Refresh: refresh, ExpiresAt: expiresAt}

	s.setCookie(accessCookie, access, CookieMaxAge)
	if refresh != "" {
		s.setCookie(refreshCookie, refresh, CookieMaxAge)
	}
	if !expiresAt.IsZero() {
		s.setCookie(expiryCookie, strconv.FormatInt(expiresAt.Unix(), 10), CookieMaxAge)
	}

	s.cached = &rec
	s.cleared = false

	if s.fallback != nil {
		if err := s.fallback.Put(s.ctx(), s.deviceID, rec); err != nil {
			return err
		}
	}
	return nil
}

// Access returns the stored access token, or "" if none.
func (s *Store) Access() string {
	if s.cleared {
		return ""
	}
	if s.cached != nil {
		return s.cached.Access
	}
	if v := s.cookie(accessCookie); v != "" {
		return v
	}
	if rec := s.loadFallback(); rec != nil {
		return rec.Access
	}
	return ""
}

// Refresh returns the stored refresh token, or "" if none.
func (s *Store) Refresh() string {
	if s.cleared {
		return ""
	}
	if s.cached != nil {
		return s.cached.Refresh
	}
	if v := s.cookie(refreshCookie); v != "" {
		return v
	}
	if rec := s.loadFallback(); rec != nil {
		return rec.Refresh
	}
	return ""
}

// ExpiresAt returns the token expiry, or the zero time if unknown.
func (s *Store) ExpiresAt() time.Time {
	if s.cleared {
		return time.Time{}
	}
	if s.cached != nil {
		return s.cached.ExpiresAt
	}
	if v := s.cookie(expiryCookie); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(unix, 0)
		}
	}
	if rec := s.loadFallback(); rec != nil {
		return rec.ExpiresAt
	}
	return time.Time{}
}

// IsExpired reports whether the token expires within RefreshThreshold. A
// missing expiry is treated as valid to avoid spurious logouts when the
// gateway omitted the metadata.
func (s *Store) IsExpired() bool {
	expiresAt := s.ExpiresAt()
	if expiresAt.IsZero() {
		return false
	}
	return expiresAt.Before(s.now().Add(RefreshThreshold))
}

// Clear removes the token set from both backing stores.
func (s *Store) Clear() {
	s.deleteCookie(accessCookie)
	s.deleteCookie(refreshCookie)
	s.deleteCookie(expiryCookie)

	s.cached = nil
	s.cleared = true
	s.fallbackRec = nil
	s.fallbackLoaded = true

	if s.fallback != nil {
		_ = s.fallback.Delete(s.ctx(), s.deviceID)
	}
}

func (s *Store) ctx() context.Context {
	return s.r.Context()
}

func (s *Store) cookie(name string) string {
	c, err := s.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Store) loadFallback() *Record {
	if s.fallbackLoaded {
		return s.fallbackRec
	}
	s.fallbackLoaded = true
	if s.fallback == nil {
		return nil
	}
	rec, err := s.fallback.Get(s.ctx(), s.deviceID)
	if err != nil {
		return nil
	}
	s.fallbackRec = rec
	return rec
}

func (s *Store) ensureDeviceID() string {
	if v := s.cookie(deviceCookie); v != "" {
		return v
	}
	id := uuid.NewString()
	// The device cookie outlives the tokens; it only identifies the browser.
	http.SetCookie(s.w, &http.Cookie{
		Name:     deviceCookie,
		Value:    id,
		Path:     "/",
		Domain:   s.opts.Domain,
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   s.secure(),
		SameSite: s.sameSite(),
	})
	return id
}

func (s *Store) setCookie(name, value string, maxAge time.Duration) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   s.secure(),
		SameSite: s.sameSite(),
	})
}

func (s *Store) deleteCookie(name string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		Domain: s.opts.Domain,
		MaxAge: -1,
	})
}

func (s *Store) secure() bool {
	if s.opts.ForceSecure {
		return true
	}
	if s.r.TLS != nil {
		return true
	}
	return strings.EqualFold(s.r.Header.Get("X-Forwarded-Proto"), "https")
}

// sameSite is Strict over HTTPS, Lax otherwise: Lax is required for the
// cookie to survive the cross-site redirect back from an OAuth provider
// during local development.
func (s *Store) sameSite() http.SameSite {
	if s.secure() {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
