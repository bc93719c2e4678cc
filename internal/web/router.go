// Package web is the HTTP surface of the Wayfinder server: the JSON API the
// pages call, the OAuth callback, the route guard, and the page shell.
package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"wayfinder/internal/callback"
	"wayfinder/internal/config"
	"wayfinder/internal/gateway"
	"wayfinder/internal/guard"
	"wayfinder/internal/metrics"
	"wayfinder/internal/ratelimit"
	"wayfinder/internal/session"
	"wayfinder/internal/token"
)

// RouterDeps holds all dependencies for the router.
type RouterDeps struct {
	Gateway  *gateway.Client
	Fallback token.Fallback
	Config   *config.Config
	Metrics  *metrics.Metrics
	OIDC     *callback.OIDCExchanger
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
}

// Server carries the shared state behind the handlers. Per-request state
// (the token store, the session manager) is built fresh for every request.
type Server struct {
	gw       *gateway.Client
	fallback token.Fallback
	cfg      *config.Config
	metrics  *metrics.Metrics
	oidc     *callback.OIDCExchanger
	gate     *session.RefreshGate
	logger   *slog.Logger
	flows    *flowRegistry
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		gw:       deps.Gateway,
		fallback: deps.Fallback,
		cfg:      deps.Config,
		metrics:  deps.Metrics,
		oidc:     deps.OIDC,
		gate:     session.NewRefreshGate(),
		logger:   logger,
		flows:    newFlowRegistry(),
	}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(s.slogRequestLogger)
	if len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(deps.Config.CORS.AllowedOrigins))
	}

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Metrics.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
		r.Handle("/metrics/prometheus", deps.Metrics.PrometheusHandler())
	}

	// OAuth callback.
	var exchanger callback.Exchanger = &callback.GatewayExchanger{Client: deps.Gateway}
	requireState := false
	if deps.OIDC != nil {
		exchanger = deps.OIDC
		requireState = true
	}
	r.Handle("/auth/callback", callback.New(exchanger, logger, requireState))

	// Abuse-prone endpoints share one limiter keyed by client address.
	limited := func(next http.Handler) http.Handler { return next }
	if deps.Limiter != nil {
		limited = ratelimit.Middleware(deps.Limiter, func() {
			if s.metrics != nil {
				s.metrics.IncRateLimitRejection("client")
			}
		})
	}

	// JSON API.
	r.Route("/api/v1", func(ar chi.Router) {
		ar.Get("/session", s.handleSession)
		ar.With(limited).Post("/session", s.handleSignIn)
		ar.Delete("/session", s.handleSignOut)
		ar.With(limited).Post("/signup", s.handleSignUp)

		ar.Get("/oauth/{provider}/url", s.handleOAuthURL)

		ar.Post("/verification/resend", s.handleResendVerification)
		ar.Post("/verification", s.handleVerifyEmail)
		ar.With(limited).Post("/password/forgot", s.handleForgotPassword)
		ar.Post("/password/reset", s.handleResetPassword)

		ar.Get("/profile", s.handleGetProfile)
		ar.Put("/profile", s.handleUpdateProfile)

		ar.Post("/diagnostics/start", s.handleDiagnosticStart)
		ar.Get("/diagnostics", s.handleDiagnosticView)
		ar.Post("/diagnostics/answer", s.handleDiagnosticAnswer)
		ar.Post("/diagnostics/next", s.handleDiagnosticNext)
		ar.Post("/diagnostics/previous", s.handleDiagnosticPrevious)
		ar.Post("/diagnostics/submit", s.handleDiagnosticSubmit)

		ar.Get("/roadmaps", s.handleListRoadmaps)
		ar.Get("/roadmaps/{id}", s.handleGetRoadmap)
		ar.Put("/roadmaps/{roadmapID}/milestones/{milestoneID}", s.handleUpdateMilestone)

		ar.With(limited).Post("/contact", s.handleContact)
	})

	// Pages: route guard, then the one-time credential handoff, then the
	// application shell.
	var guardRec guard.MetricsRecorder
	if s.metrics != nil {
		guardRec = s.metrics
	}
	r.Group(func(pr chi.Router) {
		pr.Use(guard.Middleware(guardRec))
		pr.Use(s.consumeCredential)
		pr.Handle("/*", s.pageHandler())
	})

	return r
}

// tokenStore builds the per-request cookie-backed token store.
func (s *Server) tokenStore(w http.ResponseWriter, r *http.Request) *token.Store {
	return token.New(w, r, s.fallback, token.Options{
		Domain:      s.cfg.Cookies.Domain,
		ForceSecure: s.cfg.Cookies.ForceSecure,
	})
}

// manager builds a per-request session manager on top of the token store.
func (s *Server) manager(w http.ResponseWriter, r *http.Request) (*session.Manager, *token.Store) {
	st := s.tokenStore(w, r)
	m := session.NewManager(s.gw, st, s.gate, s.cfg.Web.Origin, s.logger)
	if s.metrics != nil {
		m.SetMetrics(s.metrics)
	}
	return m, st
}
