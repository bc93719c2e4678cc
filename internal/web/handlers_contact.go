package web

import (
	"net/http"
	"strings"

	"wayfinder/internal/gateway"
)

// handleContact handles POST /api/v1/contact. Unauthenticated, so it sits
// behind the rate limiter.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var msg gateway.ContactMessage
	if err := readJSON(r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Message = strings.TrimSpace(msg.Message)
	if msg.Name == "" || msg.Email == "" || msg.Message == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name, email, and message are required")
		return
	}

	if err := s.gw.Contact(r.Context(), msg); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}
