package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GenerateRoadmap asks the gateway to generate a roadmap from a completed
// diagnostic session.
func (c *Client) GenerateRoadmap(ctx context.Context, token, sessionID, targetCompany, targetRole string) (*GenerateRoadmapResponse, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	req := map[string]string{"session_id": sessionID}
	if targetCompany != "" {
		req["target_company"] = targetCompany
	}
	if targetRole != "" {
		req["target_role"] = targetRole
	}
	var resp GenerateRoadmapResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/roadmaps/generate", "roadmaps/generate", token, req, &resp); err != nil {
		return nil, err
	}
	if resp.RoadmapID == "" {
		return nil, fmt.Errorf("gateway roadmap response missing roadmap_id")
	}
	return &resp, nil
}

// Roadmap fetches one roadmap by ID.
func (c *Client) Roadmap(ctx context.Context, token, id string) (*Roadmap, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	path := "/api/v1/roadmaps/" + url.PathEscape(id)
	var r Roadmap
	if err := c.do(ctx, http.MethodGet, path, "roadmaps/get", token, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Roadmaps lists the current user's roadmaps.
func (c *Client) Roadmaps(ctx context.Context, token string) (*RoadmapList, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var list RoadmapList
	if err := c.do(ctx, http.MethodGet, "/api/v1/roadmaps", "roadmaps/list", token, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// UpdateMilestone sets a milestone's status.
func (c *Client) UpdateMilestone(ctx context.Context, token, roadmapID, milestoneID, status string) error {
	if token == "" {
		return ErrAuthRequired
	}
	path := fmt.Sprintf("/api/v1/roadmaps/%s/milestones/%s", url.PathEscape(roadmapID), url.PathEscape(milestoneID))
	req := map[string]string{"status": status}
	return c.do(ctx, http.MethodPut, path, "roadmaps/milestone", token, req, nil)
}
