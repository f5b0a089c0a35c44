// Package query filters, renames and form-encodes API query parameters.
//
// Callers build queries with snake_case keys; only the keys an endpoint
// accepts survive, and they are sent in lowerCamelCase:
//
//	q := query.Query{"document_type_code": "TRANSCRIPT", "limit": 25, "bogus": "x"}
//	query.Encode(q, query.DocumentMetadataKeys) // "documentTypeCode=TRANSCRIPT&limit=25"
package query

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
)

// Query maps snake_case parameter names to scalar values.
type Query map[string]any

// Clone returns a shallow copy of q.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// KeySet is the set of parameter names an endpoint accepts. The zero value
// accepts nothing; All accepts every key.
type KeySet struct {
	all  bool
	keys map[string]struct{}
}

// All accepts every key.
var All = KeySet{all: true}

// Keys builds a KeySet accepting exactly the given keys.
func Keys(keys ...string) KeySet {
	set := KeySet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		set.keys[k] = struct{}{}
	}
	return set
}

// Allows reports whether key is accepted.
func (s KeySet) Allows(key string) bool {
	if s.all {
		return true
	}
	_, ok := s.keys[key]
	return ok
}

// Endpoint key sets.
var (
	DocumentMetadataKeys = Keys("area_code", "document_type_code", "field_code", "field_value", "fields", "limit", "offset", "q")
	DocumentContentKeys  = Keys("include_annotations")
	PageContentKeys      = Keys("dpi", "height", "width", "include_annotations")
)

// Values filters q to the allowed keys, drops absent or empty values and
// renames the remaining keys to lowerCamelCase.
func Values(q Query, allowed KeySet) url.Values {
	values := url.Values{}
	for key, v := range q {
		if !allowed.Allows(key) {
			continue
		}
		s, ok := stringify(v)
		if !ok || s == "" {
			continue
		}
		values.Set(Camelize(key), s)
	}
	return values
}

// Encode returns the URL form encoding of Values(q, allowed). Key order is
// not significant.
func Encode(q Query, allowed KeySet) string {
	return Values(q, allowed).Encode()
}

// Decode parses an encoded query back into snake_case keys with string
// values.
func Decode(encoded string) (Query, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(encoded, "?"))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	q := make(Query, len(values))
	for key := range values {
		q[strcase.ToSnake(key)] = values.Get(key)
	}
	return q, nil
}

// Camelize converts a snake_case name to lowerCamelCase. Only underscores
// separate words; any other character is kept as is.
func Camelize(key string) string {
	parts := strings.Split(key, "_")
	var b strings.Builder
	b.Grow(len(key))
	for _, part := range parts {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		if b.Len() == 0 {
			r = unicode.ToLower(r)
		} else {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		b.WriteString(part[size:])
	}
	return b.String()
}

// stringify renders a scalar. Nil values and nil pointers are absent.
func stringify(v any) (string, bool) {
	if v == nil {
		return "", false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	return fmt.Sprint(rv.Interface()), true
}
