package documents

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/Sternrassler/etrieve-client/internal/testutil"
	"github.com/Sternrassler/etrieve-client/pkg/cache"
	"github.com/Sternrassler/etrieve-client/pkg/client"
	"github.com/Sternrassler/etrieve-client/pkg/config"
	"github.com/Sternrassler/etrieve-client/pkg/pagination"
	"github.com/Sternrassler/etrieve-client/pkg/query"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestHandler(t *testing.T, mock *testutil.MockEtrieve, cacheManager *cache.Manager) *Handler {
	t.Helper()

	logger := zerolog.Nop()
	c, err := client.New(client.Config{
		Credentials: config.Credentials{
			AuthURL:  mock.AuthURL(),
			BaseURL:  mock.URL(),
			Username: "blah",
			Password: "blech",
		},
		HTTPClient: mock.Client(),
		Logger:     &logger,
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	h, err := New(Config{Client: c, Cache: cacheManager, Logger: &logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func newTestCache(t *testing.T) (*cache.Manager, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return cache.NewManager(rdb), mr
}

func strPtr(s string) *string { return &s }

func headerOf(key, value string) http.Header {
	h := http.Header{}
	h.Set(key, value)
	return h
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing client")
	}
}

func TestDocumentMetadata(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetDocuments(testutil.NewDocuments(3))

	h := newTestHandler(t, mock, nil)

	page, err := h.DocumentMetadata(context.Background(), query.Query{
		"q":                  "Joe",
		"document_type_code": "TRANSCRIPT",
		"limit":              2,
		"bogus":              "dropped",
	}, nil)
	if err != nil {
		t.Fatalf("DocumentMetadata() error = %v", err)
	}

	if len(page.Items) != 2 {
		t.Errorf("items = %d, want 2", len(page.Items))
	}
	if !page.HasMore {
		t.Error("expected HasMore with one document remaining")
	}
	if page.Items[0]["name"] != "Document 1" {
		t.Errorf("first item = %v", page.Items[0])
	}

	q := mock.GetLastQuery()
	if q.Get("q") != "Joe" {
		t.Errorf("q = %q, want Joe", q.Get("q"))
	}
	if q.Get("documentTypeCode") != "TRANSCRIPT" {
		t.Errorf("documentTypeCode = %q, want TRANSCRIPT", q.Get("documentTypeCode"))
	}
	if q.Has("bogus") {
		t.Error("unknown key should not be sent")
	}
	if got := mock.GetLastRequestHeader().Get(client.AuthTokenHeader); got != "YmxhaDpibGVjaA==" {
		t.Errorf("Auth-Token = %q", got)
	}
}

func TestDocumentMetadata_HasMore(t *testing.T) {
	tests := []struct {
		name    string
		header  *string
		hasMore bool
	}{
		{name: "exact False", header: strPtr("False"), hasMore: false},
		{name: "True", header: strPtr("True"), hasMore: true},
		{name: "lowercase false", header: strPtr("false"), hasMore: true},
		{name: "absent", header: strPtr(""), hasMore: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockEtrieve()
			defer mock.Close()
			mock.SetDocuments(testutil.NewDocuments(1))
			mock.SetHasMore(tt.header)

			h := newTestHandler(t, mock, nil)
			page, err := h.DocumentMetadata(context.Background(), nil, nil)
			if err != nil {
				t.Fatalf("DocumentMetadata() error = %v", err)
			}
			if page.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.hasMore)
			}
		})
	}
}

func TestHasMore(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   bool
	}{
		{name: "dash False", header: headerOf("X-HasMore", "False"), want: false},
		{name: "underscore False", header: headerOf("X_HasMore", "False"), want: false},
		{name: "dash True", header: headerOf("X-HasMore", "True"), want: true},
		{name: "FALSE", header: headerOf("X-HasMore", "FALSE"), want: true},
		{name: "missing", header: http.Header{}, want: true},
		{name: "nil", header: nil, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasMore(tt.header); got != tt.want {
				t.Errorf("HasMore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentMetadata_InvalidJSON(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetResponse(testutil.DocumentsPath, http.StatusOK, "<html>oops</html>", map[string]string{
		"X-HasMore": "False",
		"X-Trace":   "abc",
	})

	h := newTestHandler(t, mock, nil)

	page, err := h.DocumentMetadata(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("DocumentMetadata() error = %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("items = %v, want none", page.Items)
	}
	if page.HasMore {
		t.Error("HasMore should still follow the response header")
	}
}

func TestGetJSON_InvalidJSONKeepsHeaders(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetResponse("/api/thing", http.StatusOK, "not json", map[string]string{"X-Trace": "abc"})

	h := newTestHandler(t, mock, nil)

	v := map[string]any{"stale": true}
	header, err := h.GetJSON(context.Background(), "api/thing", "", nil, &v)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if len(v) != 0 {
		t.Errorf("value = %v, want empty", v)
	}
	if header.Get("X-Trace") != "abc" {
		t.Errorf("X-Trace = %q, want abc", header.Get("X-Trace"))
	}
}

func TestGetJSON_TypeMismatchZeroesStruct(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetResponse("/api/thing", http.StatusOK, `{"name":"x","count":"many"}`, nil)

	h := newTestHandler(t, mock, nil)

	type thing struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	v := thing{Name: "stale", Count: 7}
	if _, err := h.GetJSON(context.Background(), "api/thing", "", nil, &v); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if v != (thing{}) {
		t.Errorf("value = %+v, want zero value", v)
	}
}

func TestDocumentMetadata_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *client.AuthenticationError
				if !errors.As(err, &authErr) {
					t.Errorf("error = %T, want *client.AuthenticationError", err)
				}
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var statusErr *client.StatusError
				if !errors.As(err, &statusErr) {
					t.Fatalf("error = %T, want *client.StatusError", err)
				}
				if statusErr.StatusCode != http.StatusBadRequest {
					t.Errorf("StatusCode = %d, want 400", statusErr.StatusCode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockEtrieve()
			defer mock.Close()
			mock.SetResponse(testutil.DocumentsPath, tt.status, `{"message":"nope"}`, nil)

			h := newTestHandler(t, mock, nil)
			_, err := h.DocumentMetadata(context.Background(), nil, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestDocumentMetadata_SessionUnavailable(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetCredentials("other", "user")

	h := newTestHandler(t, mock, nil)

	_, err := h.DocumentMetadata(context.Background(), nil, nil)
	if !errors.Is(err, client.ErrSessionUnavailable) {
		t.Fatalf("error = %v, want ErrSessionUnavailable", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("API requests = %d, want 0", mock.GetRequestCount())
	}
}

func TestAllDocumentMetadata(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetDocuments(testutil.NewDocuments(30))

	h := newTestHandler(t, mock, nil)

	docs, err := h.AllDocumentMetadata(context.Background(), query.Query{"q": "Joe"}, nil, pagination.DefaultConfig())
	if err != nil {
		t.Fatalf("AllDocumentMetadata() error = %v", err)
	}

	if len(docs) != 30 {
		t.Errorf("documents = %d, want 30", len(docs))
	}
	if want := []int{0, 25}; !reflect.DeepEqual(mock.GetOffsets(), want) {
		t.Errorf("offsets = %v, want %v", mock.GetOffsets(), want)
	}
	if mock.GetTokenRequestCount() != 1 {
		t.Errorf("token requests = %d, want 1", mock.GetTokenRequestCount())
	}
}

func TestAllDocumentMetadata_IgnoresNonExactFalse(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetDocuments(testutil.NewDocuments(4))
	mock.SetHasMore(strPtr("false"))

	h := newTestHandler(t, mock, nil)

	docs, err := h.AllDocumentMetadata(context.Background(), nil, nil, pagination.Config{PerRequest: 2, LoopMax: 10})
	if err != nil {
		t.Fatalf("AllDocumentMetadata() error = %v", err)
	}

	// Pagination only ends on the empty third page.
	if want := []int{0, 2, 4}; !reflect.DeepEqual(mock.GetOffsets(), want) {
		t.Errorf("offsets = %v, want %v", mock.GetOffsets(), want)
	}
	if len(docs) != 4 {
		t.Errorf("documents = %d, want 4", len(docs))
	}
}

func TestAllDocumentMetadata_LoopMax(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetDocuments(testutil.NewDocuments(100))

	h := newTestHandler(t, mock, nil)

	docs, err := h.AllDocumentMetadata(context.Background(), nil, nil, pagination.Config{PerRequest: 10, LoopMax: 3})
	if err != nil {
		t.Fatalf("AllDocumentMetadata() error = %v", err)
	}
	if len(docs) != 30 {
		t.Errorf("documents = %d, want 30", len(docs))
	}
}

func TestDocumentContent(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()

	h := newTestHandler(t, mock, nil)

	content, err := h.DocumentContent(context.Background(), "42", query.Query{
		"include_annotations": true,
		"dpi":                 300,
	}, nil)
	if err != nil {
		t.Fatalf("DocumentContent() error = %v", err)
	}

	if string(content.Data) != "content:42" {
		t.Errorf("data = %q, want content:42", content.Data)
	}
	if content.ContentType != "application/pdf" {
		t.Errorf("content type = %q", content.ContentType)
	}
	if content.Cached {
		t.Error("content should not be cached without a cache")
	}

	q := mock.GetLastQuery()
	if q.Get("includeAnnotations") != "true" {
		t.Errorf("includeAnnotations = %q, want true", q.Get("includeAnnotations"))
	}
	if q.Has("dpi") {
		t.Error("dpi is not accepted for document content")
	}
}

func TestPageContent(t *testing.T) {
	tests := []struct {
		name string
		page int
		want string
	}{
		{name: "explicit page", page: 3, want: "page:7:3"},
		{name: "zero defaults to first", page: 0, want: "page:7:1"},
		{name: "negative defaults to first", page: -2, want: "page:7:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockEtrieve()
			defer mock.Close()

			h := newTestHandler(t, mock, nil)

			content, err := h.PageContent(context.Background(), "7", tt.page, query.Query{"dpi": 150, "width": 800}, nil)
			if err != nil {
				t.Fatalf("PageContent() error = %v", err)
			}
			if string(content.Data) != tt.want {
				t.Errorf("data = %q, want %q", content.Data, tt.want)
			}
			if content.ContentType != "image/png" {
				t.Errorf("content type = %q", content.ContentType)
			}

			q := mock.GetLastQuery()
			if q.Get("dpi") != "150" || q.Get("width") != "800" {
				t.Errorf("query = %v", q)
			}
		})
	}
}

func TestDocumentContent_Cached(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	cacheManager, mr := newTestCache(t)

	h := newTestHandler(t, mock, cacheManager)
	ctx := context.Background()

	first, err := h.DocumentContent(ctx, "42", nil, nil)
	if err != nil {
		t.Fatalf("first DocumentContent() error = %v", err)
	}
	if first.Cached {
		t.Error("first call should not be a cache hit")
	}

	second, err := h.DocumentContent(ctx, "42", nil, nil)
	if err != nil {
		t.Fatalf("second DocumentContent() error = %v", err)
	}
	if !second.Cached {
		t.Error("second call should be a cache hit")
	}
	if string(second.Data) != "content:42" {
		t.Errorf("cached data = %q", second.Data)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("API requests = %d, want 1", mock.GetRequestCount())
	}

	for _, key := range mr.Keys() {
		if strings.Contains(key, "YmxhaDpibGVjaA") {
			t.Errorf("cache key %q exposes credentials", key)
		}
	}
}

func TestDocumentContent_ScopedHeadersBypassCache(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	cacheManager, _ := newTestCache(t)

	h := newTestHandler(t, mock, cacheManager)
	ctx := context.Background()
	headers := http.Header{"X-Request-Id": {"abc"}}

	for i := 0; i < 2; i++ {
		content, err := h.DocumentContent(ctx, "42", nil, headers)
		if err != nil {
			t.Fatalf("DocumentContent() error = %v", err)
		}
		if content.Cached {
			t.Error("scoped header calls should not use the cache")
		}
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("API requests = %d, want 2", mock.GetRequestCount())
	}
	if got := mock.GetLastRequestHeader().Get("X-Request-Id"); got != "abc" {
		t.Errorf("X-Request-Id = %q, want abc", got)
	}
}

func TestDocumentContent_CacheUnavailable(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	cacheManager, mr := newTestCache(t)
	mr.Close()

	h := newTestHandler(t, mock, cacheManager)

	content, err := h.DocumentContent(context.Background(), "42", nil, nil)
	if err != nil {
		t.Fatalf("DocumentContent() error = %v", err)
	}
	if string(content.Data) != "content:42" {
		t.Errorf("data = %q", content.Data)
	}
}

func TestPost(t *testing.T) {
	mock := testutil.NewMockEtrieve()
	defer mock.Close()
	mock.SetResponse("/api/echo", http.StatusOK, `{"ok":true}`, nil)

	h := newTestHandler(t, mock, nil)

	resp, err := h.Post(context.Background(), "api/echo", strings.NewReader(`{"a":1}`), http.Header{"Content-Type": {"application/json"}})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()

	if got := mock.GetLastRequestHeader().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}
