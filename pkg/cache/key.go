package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached content response.
type Key struct {
	// Scope separates entries fetched with different credentials
	// (typically the username).
	Scope string

	// Path is the API path (e.g. "api/documents/42/contents").
	Path string

	// Query holds the wire query parameters.
	Query url.Values
}

// String generates a deterministic Redis key.
// Format: etrieve:scope:path:param1=val1:param2=val2
//
// Example:
//
//	etrieve:svc-reader:api/documents/42/contents/1:dpi=300:width=800
func (k Key) String() string {
	parts := []string{"etrieve"}

	if k.Scope != "" {
		parts = append(parts, k.Scope)
	}

	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, name+"="+strings.Join(k.Query[name], ","))
		}
	}

	return strings.Join(parts, ":")
}
