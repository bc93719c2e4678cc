package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSummaryReflectsRecordedMetrics(t *testing.T) {
	m := New()

	m.IncHTTPRequest(http.MethodGet, "/api/v1/session", 200)
	m.IncHTTPRequest(http.MethodPost, "/api/v1/session", 401)
	m.ObserveHTTPDuration(http.MethodGet, "/api/v1/session", 0.05)
	m.IncGatewayRequests("auth/session", http.MethodGet, 200)
	m.ObserveGatewayDuration("auth/session", 0.02)
	m.IncAuthRefresh("success")
	m.IncAuthRefresh("failure")
	m.IncGuardRedirect("protected")
	m.IncDiagnosticSubmission("completed")
	m.IncDiagnosticSubmission("validation")
	m.IncRateLimitRejection("signin")

	w := httptest.NewRecorder()
	m.Handler()(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var s Summary
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}

	if s.HTTP.TotalRequests != 2 {
		t.Errorf("http total = %v, want 2", s.HTTP.TotalRequests)
	}
	if s.HTTP.ErrorRate != 0.5 {
		t.Errorf("http error rate = %v, want 0.5", s.HTTP.ErrorRate)
	}
	if s.Gateway.TotalRequests != 1 {
		t.Errorf("gateway total = %v, want 1", s.Gateway.TotalRequests)
	}
	if s.Auth.Refreshes != 2 || s.Auth.RefreshFailures != 1 {
		t.Errorf("auth = %+v, want 2 refreshes with 1 failure", s.Auth)
	}
	if s.Guard.Redirects != 1 {
		t.Errorf("guard redirects = %v, want 1", s.Guard.Redirects)
	}
	if s.Diagnostics.Completed != 1 || s.Diagnostics.Validations != 1 {
		t.Errorf("diagnostics = %+v", s.Diagnostics)
	}
	if s.RateLimit.Rejections != 1 {
		t.Errorf("ratelimit rejections = %v, want 1", s.RateLimit.Rejections)
	}
	if s.Server.StartTime == 0 {
		t.Error("server start time must be set")
	}
}

func TestPrometheusHandlerServesExposition(t *testing.T) {
	m := New()
	m.IncHTTPRequest(http.MethodGet, "/health", 200)

	w := httptest.NewRecorder()
	m.PrometheusHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected exposition output")
	}
}
