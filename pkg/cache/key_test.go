package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "path only",
			key:  Key{Path: "/api/documents/42/contents/"},
			want: "etrieve:api/documents/42/contents",
		},
		{
			name: "scoped",
			key:  Key{Scope: "blah", Path: "api/documents/42/contents"},
			want: "etrieve:blah:api/documents/42/contents",
		},
		{
			name: "query params sorted",
			key: Key{
				Path: "api/documents/42/contents/1",
				Query: url.Values{
					"width": []string{"800"},
					"dpi":   []string{"300"},
				},
			},
			want: "etrieve:api/documents/42/contents/1:dpi=300:width=800",
		},
		{
			name: "empty",
			key:  Key{},
			want: "etrieve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{
		Path:  "api/documents/1/contents/2",
		Query: url.Values{"a": {"1"}, "b": {"2"}, "c": {"3"}, "d": {"4"}},
	}

	first := key.String()
	for i := 0; i < 50; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
