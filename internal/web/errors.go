package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"wayfinder/internal/gateway"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorRedirectCookie marks that the browser was just told to visit the
// error page. It expires in seconds, so only the first infrastructure
// failure in a burst triggers a redirect and the error page itself can
// still call the API without bouncing in a loop.
const errorRedirectCookie = "wf_error_redirect"

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// gatewayError translates a gateway client error into the right HTTP
// response. 401s pass through, expected 4xx keep their status and detail,
// and infrastructure failures become a 502 with the error-page handoff.
func (s *Server) gatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrAuthRequired), gateway.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, "unauthorized", gateway.Detail(err))
	case gateway.IsInfrastructure(err):
		s.infraFailure(w, r, err)
	default:
		var he *gateway.HTTPError
		if errors.As(err, &he) {
			writeError(w, he.Status, "gateway_error", he.Detail)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}

// infraFailure reports a gateway outage. The full error goes to the log;
// the browser gets a generic 502. The first failure also carries a
// redirect to the error page, gated by a short-lived cookie so a broken
// gateway cannot bounce the browser in a loop.
func (s *Server) infraFailure(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("gateway infrastructure failure", "error", err, "method", r.Method, "path", r.URL.Path)

	redirect := ""
	if _, cerr := r.Cookie(errorRedirectCookie); cerr != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     errorRedirectCookie,
			Value:    "1",
			Path:     "/",
			MaxAge:   5,
			HttpOnly: true,
		})
		redirect = "/error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    "gateway_unavailable",
			"message": "The service is temporarily unavailable. Please try again.",
		},
	}
	if redirect != "" {
		resp["redirect"] = redirect
	}
	_ = json.NewEncoder(w).Encode(resp)
}
