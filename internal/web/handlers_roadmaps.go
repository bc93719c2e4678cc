package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"wayfinder/internal/gateway"
	"wayfinder/internal/roadmap"
)

// handleListRoadmaps handles GET /api/v1/roadmaps.
func (s *Server) handleListRoadmaps(w http.ResponseWriter, r *http.Request) {
	mgr, _ := s.manager(w, r)

	var list *gateway.RoadmapList
	err := mgr.Do(r.Context(), func(tok string) error {
		var err error
		list, err = s.gw.Roadmaps(r.Context(), tok)
		return err
	})
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetRoadmap handles GET /api/v1/roadmaps/{id}. Milestones come back
// grouped into the five journey phases.
func (s *Server) handleGetRoadmap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mgr, _ := s.manager(w, r)

	var rm *gateway.Roadmap
	err := mgr.Do(r.Context(), func(tok string) error {
		var err error
		rm, err = s.gw.Roadmap(r.Context(), tok, id)
		return err
	})
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             rm.ID,
		"title":          rm.Title,
		"description":    rm.Description,
		"target_company": rm.TargetCompany,
		"target_role":    rm.TargetRole,
		"status":         rm.Status,
		"created_at":     rm.CreatedAt,
		"updated_at":     rm.UpdatedAt,
		"phases":         roadmap.Group(rm.Milestones),
	})
}

// handleUpdateMilestone handles
// PUT /api/v1/roadmaps/{roadmapID}/milestones/{milestoneID}.
func (s *Server) handleUpdateMilestone(w http.ResponseWriter, r *http.Request) {
	roadmapID := chi.URLParam(r, "roadmapID")
	milestoneID := chi.URLParam(r, "milestoneID")

	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil || req.Status == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "status is required")
		return
	}

	status := roadmap.NormalizeStatus(req.Status)
	mgr, _ := s.manager(w, r)

	err := mgr.Do(r.Context(), func(tok string) error {
		return s.gw.UpdateMilestone(r.Context(), tok, roadmapID, milestoneID, status)
	})
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
