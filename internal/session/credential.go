package session

import (
	"net/url"
)

// ExternalCredential is a one-time token handoff arriving from outside the
// normal session flow, in practice the query parameters the OAuth callback
// attaches to its redirect. Isolating the URL mechanism here keeps the
// manager transport-agnostic.
type ExternalCredential struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// credentialParams are stripped from the URL once consumed.
var credentialParams = []string{"token", "refresh_token", "user_id"}

// CredentialFromQuery extracts a pending external credential from query
// parameters, or returns nil when none is present.
func CredentialFromQuery(q url.Values) *ExternalCredential {
	access := q.Get("token")
	if access == "" {
		return nil
	}
	return &ExternalCredential{
		AccessToken:  access,
		RefreshToken: q.Get("refresh_token"),
		UserID:       q.Get("user_id"),
	}
}

// StripCredentialParams returns u with the credential parameters removed,
// the target for the clean-URL redirect after the handoff is consumed.
func StripCredentialParams(u *url.URL) string {
	clean := *u
	q := clean.Query()
	for _, p := range credentialParams {
		q.Del(p)
	}
	clean.RawQuery = q.Encode()
	clean.Fragment = ""
	return clean.String()
}
