package cache

import (
	"net/http"
	"time"
)

// Entry is a cached content response.
type Entry struct {
	// Data is the response body.
	Data []byte `json:"data"`

	// ContentType is the response media type (e.g. "application/pdf").
	ContentType string `json:"content_type"`

	// Headers are the response headers.
	Headers http.Header `json:"headers"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
