package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"wayfinder/internal/config"
	"wayfinder/internal/gateway"
	"wayfinder/internal/ratelimit"
	"wayfinder/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Tokens: config.TokenConfig{Fallback: "memory"},
		Web:    config.WebConfig{Origin: "http://localhost:3000"},
	}
}

// newTestStack starts a fake gateway and a Wayfinder server in front of it,
// returning a client with a cookie jar so auth cookies persist.
func newTestStack(t *testing.T, gw http.Handler, limiter *ratelimit.Limiter) (*httptest.Server, *http.Client) {
	t.Helper()

	upstream := httptest.NewServer(gw)
	t.Cleanup(upstream.Close)

	router := NewRouter(RouterDeps{
		Gateway:  gateway.New(upstream.URL, 5*time.Second, testLogger()),
		Fallback: token.NewMemoryFallback(),
		Config:   testConfig(),
		Limiter:  limiter,
		Logger:   testLogger(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return srv, client
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	return m
}

func fakeGatewayOK() http.Handler {
	mux := http.NewServeMux()
	session := map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"expires_at":    time.Now().Add(time.Hour).Unix(),
	}
	user := map[string]any{"id": "user-1", "email": "ada@example.com", "email_verified": true}

	writeOK := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/api/v1/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]any{"session": session, "user": user})
	})
	mux.HandleFunc("/api/v1/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "invalid token"})
			return
		}
		writeOK(w, map[string]any{"user": user})
	})
	mux.HandleFunc("/api/v1/auth/check-verification", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]bool{"email_verified": true})
	})
	mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]any{"id": "user-1", "full_name": "Ada"})
	})
	mux.HandleFunc("/api/v1/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]bool{"ok": true})
	})
	mux.HandleFunc("/api/v1/contact", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]bool{"ok": true})
	})
	return mux
}

func TestHealth(t *testing.T) {
	srv, client := newTestStack(t, fakeGatewayOK(), nil)

	resp, err := client.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSignInSetsCookiesAndSessionResolves(t *testing.T) {
	srv, client := newTestStack(t, fakeGatewayOK(), nil)

	resp := postJSON(t, client, srv.URL+"/api/v1/session", map[string]string{
		"email": "ada@example.com", "password": "hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-in status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["email_verified"] != true {
		t.Errorf("email_verified = %v, want true", body["email_verified"])
	}

	u, _ := url.Parse(srv.URL)
	names := map[string]bool{}
	for _, c := range client.Jar.Cookies(u) {
		names[c.Name] = true
	}
	if !names[token.AccessCookieName] {
		t.Errorf("auth cookie not set; cookies = %v", names)
	}

	// The session endpoint now resolves the user from the cookie.
	resp2, err := client.Get(srv.URL + "/api/v1/session")
	if err != nil {
		t.Fatal(err)
	}
	snap := decodeBody(t, resp2)
	if snap["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", snap["authenticated"])
	}
}

func TestSignInWrongCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "invalid login credentials"})
	})
	srv, client := newTestStack(t, mux, nil)

	resp := postJSON(t, client, srv.URL+"/api/v1/session", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "invalid_credentials" {
		t.Errorf("error code = %v, want invalid_credentials", errObj["code"])
	}
}

func TestSessionWithoutTokenIsUnauthenticated(t *testing.T) {
	// Any gateway call would 500 the test; no token means no calls.
	gw := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected gateway call %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv, client := newTestStack(t, gw, nil)

	resp, err := client.Get(srv.URL + "/api/v1/session")
	if err != nil {
		t.Fatal(err)
	}
	snap := decodeBody(t, resp)
	if snap["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", snap["authenticated"])
	}
}

func TestGuardRedirectsProtectedPage(t *testing.T) {
	srv, client := newTestStack(t, fakeGatewayOK(), nil)

	resp, err := client.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/login?redirect=") {
		t.Errorf("Location = %q, want /login?redirect=...", loc)
	}
}

func TestPublicPageServesShell(t *testing.T) {
	srv, client := newTestStack(t, fakeGatewayOK(), nil)

	resp, err := client.Get(srv.URL + "/about")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(data, []byte("Wayfinder")) {
		t.Error("shell body missing")
	}
}

func TestCredentialHandoffConsumedAndStripped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": "user-1", "email_verified": true},
		})
	})
	mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "user-1"})
	})
	mux.HandleFunc("/api/v1/auth/check-verification", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"email_verified": true})
	})
	srv, client := newTestStack(t, mux, nil)

	// Seed the auth cookie so the guard lets /dashboard through; the
	// handoff then replaces it.
	u, _ := url.Parse(srv.URL)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: token.AccessCookieName, Value: "stale"}})

	resp, err := client.Get(srv.URL + "/dashboard?token=handoff-token&refresh_token=handoff-refresh&user_id=user-1&tab=skills")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard?tab=skills" {
		t.Errorf("Location = %q, want the URL with credentials stripped", loc)
	}

	// Token cookie now carries the handoff token.
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == token.AccessCookieName && c.Value != "handoff-token" {
			t.Errorf("auth cookie = %q, want handoff-token", c.Value)
		}
	}
}

func TestContactValidationAndRateLimit(t *testing.T) {
	limiter := ratelimit.New(2, time.Minute)
	srv, client := newTestStack(t, fakeGatewayOK(), limiter)

	// Missing fields.
	resp := postJSON(t, client, srv.URL+"/api/v1/contact", map[string]string{"name": "Ada"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()

	msg := map[string]string{"name": "Ada", "email": "ada@example.com", "message": "hi"}
	if resp := postJSON(t, client, srv.URL+"/api/v1/contact", msg); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// Third request from the same client trips the limiter (the 422 also
	// consumed a token).
	resp = postJSON(t, client, srv.URL+"/api/v1/contact", msg)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestInfraFailureRedirectsOnce(t *testing.T) {
	gw := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "upstream exploded"})
	})
	srv, client := newTestStack(t, gw, nil)

	msg := map[string]string{"name": "Ada", "email": "ada@example.com", "message": "hi"}

	resp := postJSON(t, client, srv.URL+"/api/v1/contact", msg)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["redirect"] != "/error" {
		t.Errorf("first failure redirect = %v, want /error", body["redirect"])
	}
	errObj, _ := body["error"].(map[string]any)
	if msg, _ := errObj["message"].(string); strings.Contains(msg, "exploded") {
		t.Error("raw upstream detail must not reach the browser")
	}

	// The error-redirect cookie suppresses the redirect on the next failure.
	resp = postJSON(t, client, srv.URL+"/api/v1/contact", msg)
	body = decodeBody(t, resp)
	if _, ok := body["redirect"]; ok {
		t.Error("second failure within the cookie window must not redirect again")
	}
}

func TestProfileRequiresAuth(t *testing.T) {
	srv, client := newTestStack(t, fakeGatewayOK(), nil)

	resp, err := client.Get(srv.URL + "/api/v1/profile")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRoadmapGroupedIntoPhases(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/roadmaps/rm-1", func(w http.ResponseWriter, r *http.Request) {
		milestones := make([]map[string]any, 10)
		for i := range milestones {
			milestones[i] = map[string]any{"milestone_index": i, "title": "m", "status": "not_started"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "rm-1", "title": "Roadmap", "milestones": milestones})
	})
	srv, client := newTestStack(t, mux, nil)

	// Seed a token so Do has something to send.
	u, _ := url.Parse(srv.URL)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: token.AccessCookieName, Value: "access-1"}})

	resp, err := client.Get(srv.URL + "/api/v1/roadmaps/rm-1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	phases, ok := body["phases"].([]any)
	if !ok || len(phases) != 5 {
		t.Fatalf("phases = %v, want 5 groups", body["phases"])
	}
	first, _ := phases[0].(map[string]any)
	ms, _ := first["milestones"].([]any)
	if len(ms) != 2 {
		t.Errorf("first phase size = %d, want 2 for 10 milestones", len(ms))
	}
}

func TestDiagnosticGatewayRejectionKeepsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/diagnostics/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"detail": "profile incomplete"})
	})
	srv, client := newTestStack(t, mux, nil)

	u, _ := url.Parse(srv.URL)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: token.AccessCookieName, Value: "access-1"}})

	resp := postJSON(t, client, srv.URL+"/api/v1/diagnostics/start", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want the gateway's 422 passed through", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if _, ok := body["redirect"]; ok {
		t.Error("a gateway 4xx must not trigger the error-page redirect")
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "gateway_error" || errObj["message"] != "profile incomplete" {
		t.Errorf("error = %v, want gateway_error with the gateway detail", errObj)
	}
}

func TestDiagnosticLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	questions := []map[string]any{
		{"question_id": "q1", "question_text": "Role?", "category": "career-snapshot", "order": 1},
		{"question_id": "q2", "question_text": "Feeling?", "category": "feeling-check", "order": 1},
	}
	mux.HandleFunc("/api/v1/diagnostics/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"session_id": "sess-1", "questions": questions})
	})
	mux.HandleFunc("/api/v1/diagnostics/sess-1/respond", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "status": "complete"})
	})
	mux.HandleFunc("/api/v1/diagnostics/sess-1/complete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	mux.HandleFunc("/api/v1/roadmaps/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "roadmap_id": "rm-9"})
	})
	srv, client := newTestStack(t, mux, nil)

	u, _ := url.Parse(srv.URL)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: token.AccessCookieName, Value: "access-1"}})

	resp := postJSON(t, client, srv.URL+"/api/v1/diagnostics/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	view := decodeBody(t, resp)
	if view["state"] != "question" {
		t.Fatalf("state = %v, want question", view["state"])
	}

	for _, q := range []string{"q1", "q2"} {
		resp = postJSON(t, client, srv.URL+"/api/v1/diagnostics/answer", map[string]string{
			"question_id": q, "value": "an answer",
		})
		resp.Body.Close()
	}

	resp = postJSON(t, client, srv.URL+"/api/v1/diagnostics/submit", nil)
	view = decodeBody(t, resp)
	if view["state"] != "roadmap_ready" {
		t.Fatalf("state = %v, want roadmap_ready (view %v)", view["state"], view)
	}
	if view["roadmap_id"] != "rm-9" {
		t.Errorf("roadmap_id = %v, want rm-9", view["roadmap_id"])
	}
}
