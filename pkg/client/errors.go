package client

import (
	"fmt"
	"net/http"

	"github.com/Sternrassler/etrieve-client/pkg/session"
)

// ErrSessionUnavailable is matched by errors from calls that were not sent
// because no session could be established.
var ErrSessionUnavailable = session.ErrSessionUnavailable

// AuthenticationError is returned when a dispatched call receives HTTP 401.
type AuthenticationError struct {
	URL  string
	Body []byte
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("etrieve authentication error: 401 Unauthorized for %s", e.URL)
}

// StatusError is returned for any response that is neither 200 nor 401.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
	Header     http.Header
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("etrieve request failed: %s (%s)", e.Status, e.URL)
}
