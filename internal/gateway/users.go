package gateway

import (
	"context"
	"net/http"
)

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/me", "users/me", token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies a partial profile update and returns the new state.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*Profile, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var p Profile
	if err := c.do(ctx, http.MethodPut, "/api/v1/users/me", "users/me", token, update, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Contact relays an unauthenticated contact-form message.
func (c *Client) Contact(ctx context.Context, msg ContactMessage) error {
	return c.do(ctx, http.MethodPost, "/api/v1/contact", "contact", "", msg, nil)
}
