package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for the Wayfinder server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Gateway client metrics.
	GatewayRequestsTotal *prometheus.CounterVec
	GatewayDuration      *prometheus.HistogramVec

	// Session metrics.
	AuthRefreshesTotal *prometheus.CounterVec
	GuardRedirects     *prometheus.CounterVec

	// Diagnostic metrics.
	DiagnosticSubmissionsTotal *prometheus.CounterVec

	// Rate limiting.
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wayfinder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		GatewayRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_gateway_requests_total",
			Help: "Total number of requests to the API gateway.",
		}, []string{"endpoint", "method", "status_code"}),

		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wayfinder_gateway_duration_seconds",
			Help:    "Gateway request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		AuthRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_auth_refreshes_total",
			Help: "Total number of access token refresh attempts.",
		}, []string{"status"}),

		GuardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_guard_redirects_total",
			Help: "Total number of route guard redirects.",
		}, []string{"rule"}),

		DiagnosticSubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_diagnostic_submissions_total",
			Help: "Total number of diagnostic submit attempts by outcome.",
		}, []string{"result"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wayfinder_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	// Register all metrics.
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GatewayRequestsTotal,
		m.GatewayDuration,
		m.AuthRefreshesTotal,
		m.GuardRedirects,
		m.DiagnosticSubmissionsTotal,
		m.RateLimitRejectionsTotal,
		m.ServerStartTime,
	)

	// Set server start time.
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PrometheusHandler serves the registry in exposition format.
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncHTTPRequest increments the HTTP requests counter.
func (m *Metrics) IncHTTPRequest(method, pathPattern string, statusCode int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, fmt.Sprintf("%d", statusCode)).Inc()
}

// ObserveHTTPDuration records a request duration.
func (m *Metrics) ObserveHTTPDuration(method, pathPattern string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
}

// IncGatewayRequests increments the gateway requests counter.
func (m *Metrics) IncGatewayRequests(endpoint, method string, statusCode int) {
	m.GatewayRequestsTotal.WithLabelValues(endpoint, method, fmt.Sprintf("%d", statusCode)).Inc()
}

// ObserveGatewayDuration records a gateway request duration.
func (m *Metrics) ObserveGatewayDuration(endpoint string, seconds float64) {
	m.GatewayDuration.WithLabelValues(endpoint).Observe(seconds)
}

// IncAuthRefresh increments the token refresh counter for the given outcome.
func (m *Metrics) IncAuthRefresh(status string) {
	m.AuthRefreshesTotal.WithLabelValues(status).Inc()
}

// IncGuardRedirect increments the route guard redirect counter.
func (m *Metrics) IncGuardRedirect(rule string) {
	m.GuardRedirects.WithLabelValues(rule).Inc()
}

// IncDiagnosticSubmission increments the diagnostic submission counter.
func (m *Metrics) IncDiagnosticSubmission(result string) {
	m.DiagnosticSubmissionsTotal.WithLabelValues(result).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}
