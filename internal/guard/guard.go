// Package guard classifies routes and redirects browsers that arrive on the
// wrong side of the sign-in boundary. It inspects cookie presence only; the
// token's validity is established later, when a handler actually calls the
// gateway.
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"wayfinder/internal/token"
)

// RouteClass is the access class of a path.
type RouteClass int

const (
	// Public routes render for everyone.
	Public RouteClass = iota
	// Protected routes require a session cookie.
	Protected
	// AuthOnly routes are the sign-in surfaces; a browser that already has
	// a session cookie is bounced to the dashboard instead.
	AuthOnly
)

func (c RouteClass) String() string {
	switch c {
	case Protected:
		return "protected"
	case AuthOnly:
		return "auth-only"
	default:
		return "public"
	}
}

var protectedPrefixes = []string{
	"/dashboard",
	"/roadmap",
	"/diagnostics",
	"/account",
	"/profile",
}

var authOnlyPrefixes = []string{
	"/login",
	"/signup",
	"/verify-email",
	"/forgot-password",
	"/reset-password",
}

// Classify returns the access class of path. Matching is by path segment
// prefix, so /dashboard/settings is protected but /dashboardless is not.
func Classify(path string) RouteClass {
	for _, p := range protectedPrefixes {
		if matchesPrefix(path, p) {
			return Protected
		}
	}
	for _, p := range authOnlyPrefixes {
		if matchesPrefix(path, p) {
			return AuthOnly
		}
	}
	return Public
}

func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

// MetricsRecorder is an optional interface for counting guard redirects.
type MetricsRecorder interface {
	IncGuardRedirect(rule string)
}

// Middleware enforces the route classes. rec may be nil.
func Middleware(rec MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := Classify(r.URL.Path)
			if class == Public {
				next.ServeHTTP(w, r)
				return
			}

			_, err := r.Cookie(token.AccessCookieName)
			hasSession := err == nil

			switch {
			case class == Protected && !hasSession:
				if rec != nil {
					rec.IncGuardRedirect("protected")
				}
				target := "/login?redirect=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
			case class == AuthOnly && hasSession:
				if rec != nil {
					rec.IncGuardRedirect("auth-only")
				}
				http.Redirect(w, r, "/dashboard", http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
