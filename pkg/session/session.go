// Package session manages the bearer-token session for one set of Etrieve
// credentials: acquiring tokens with the client-credentials grant, tracking
// expiry and resetting on failure.
package session

import (
	"net/http"
	"time"
)

// ExpiryMargin is subtracted from the token expiry when deciding whether the
// session is still usable, absorbing clock skew and request latency.
const ExpiryMargin = 5 * time.Second

// Session is a snapshot of the session state. A zero BearerToken means the
// session is inactive; ExpiresAt is set exactly when BearerToken is.
type Session struct {
	BearerToken string
	ExpiresAt   time.Time

	// Headers are the base headers every authenticated request starts from.
	Headers http.Header
}

// Active reports whether the session can be used at the given instant.
func (s Session) Active(now time.Time) bool {
	if s.BearerToken == "" || s.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(s.ExpiresAt.Add(-ExpiryMargin))
}

func (s Session) clone() Session {
	s.Headers = s.Headers.Clone()
	if s.Headers == nil {
		s.Headers = http.Header{}
	}
	return s
}

func newSession(bearer string, expiresAt time.Time) Session {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+bearer)

	return Session{
		BearerToken: bearer,
		ExpiresAt:   expiresAt,
		Headers:     headers,
	}
}
