package web

import (
	"net/http"

	"wayfinder/internal/gateway"
)

// handleGetProfile handles GET /api/v1/profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	mgr, _ := s.manager(w, r)

	var profile *gateway.Profile
	err := mgr.Do(r.Context(), func(tok string) error {
		var err error
		profile, err = s.gw.Profile(r.Context(), tok)
		return err
	})
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleUpdateProfile handles PUT /api/v1/profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update gateway.ProfileUpdate
	if err := readJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	mgr, _ := s.manager(w, r)

	var profile *gateway.Profile
	err := mgr.Do(r.Context(), func(tok string) error {
		var err error
		profile, err = s.gw.UpdateProfile(r.Context(), tok, update)
		return err
	})
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
