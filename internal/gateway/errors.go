package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthRequired is returned when an authenticated endpoint is called with
// no access token available.
var ErrAuthRequired = errors.New("authentication required: no access token available")

// HTTPError is a non-2xx gateway response. Detail is extracted from the JSON
// body field "detail", falling back to the HTTP status text.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Detail)
}

// IsUnauthorized reports whether err is a gateway 401, the signal that the
// access token is invalid or expired.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusUnauthorized
}

// IsInfrastructure reports whether err is an infrastructure failure: a 5xx
// from the gateway, or a transport-level error with no status at all.
// Expected 4xx responses and ErrAuthRequired are not infrastructure faults.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthRequired) {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status >= http.StatusInternalServerError
	}
	return true
}

// Detail returns the user-safe detail of a gateway error, or a generic
// message for transport errors whose text should never reach a user.
func Detail(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Detail
	}
	return "an unexpected error occurred"
}
