// Package documents exposes the Etrieve content API: document metadata
// search (single page or fully paginated), document content and page images.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/Sternrassler/etrieve-client/pkg/cache"
	"github.com/Sternrassler/etrieve-client/pkg/client"
	"github.com/Sternrassler/etrieve-client/pkg/pagination"
	"github.com/Sternrassler/etrieve-client/pkg/query"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API paths relative to the base URL.
const (
	APIPath       = "api"
	DocumentsPath = APIPath + "/documents"
)

// HasMoreHeader signals whether more metadata pages exist. Only the exact
// value "False" means the listing is exhausted.
const HasMoreHeader = "X-HasMore"

// hasMoreFalse is the only value treated as "no more pages".
const hasMoreFalse = "False"

// Document is one metadata record as returned by the API.
type Document map[string]any

// Content is a downloaded document or page rendition.
type Content struct {
	Data        []byte
	ContentType string
	Header      http.Header
	// Cached is true when the content was served from the cache.
	Cached bool
}

// Config holds the handler configuration.
type Config struct {
	// Client dispatches authenticated requests. Required.
	Client *client.Client

	// Cache stores content and page images when set.
	Cache *cache.Manager

	// Logger defaults to the global logger tagged with component=documents.
	Logger *zerolog.Logger
}

// Handler issues document API calls through an authenticated client.
type Handler struct {
	client *client.Client
	cache  *cache.Manager
	scope  string
	logger zerolog.Logger
}

// New creates a document handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}

	logger := log.With().Str("component", "documents").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Handler{
		client: cfg.Client,
		cache:  cfg.Cache,
		scope:  credentialScope(cfg.Client.Session().AuthToken()),
		logger: logger,
	}, nil
}

// Client returns the underlying dispatcher.
func (h *Handler) Client() *client.Client {
	return h.client
}

// DocumentMetadata fetches one page of document metadata.
//
// Accepted query keys: q (simple search), area_code, document_type_code,
// field_code and field_value (exact match of a field), fields
// (comma-delimited list of fields to include), limit and offset.
func (h *Handler) DocumentMetadata(ctx context.Context, q query.Query, headers http.Header) (pagination.Page[Document], error) {
	var docs []Document
	respHeader, err := h.GetJSON(ctx, DocumentsPath, query.Encode(q, query.DocumentMetadataKeys), headers, &docs)
	if err != nil {
		return pagination.Page[Document]{}, err
	}

	return pagination.Page[Document]{
		Items:   docs,
		HasMore: HasMore(respHeader),
	}, nil
}

// AllDocumentMetadata repeatedly calls DocumentMetadata, cfg.PerRequest
// records at a time, until every matching document is retrieved or
// cfg.LoopMax requests have been made.
func (h *Handler) AllDocumentMetadata(ctx context.Context, q query.Query, headers http.Header, cfg pagination.Config) ([]Document, error) {
	fetcher := pagination.PageFetcherFunc[Document](func(ctx context.Context, q query.Query) (pagination.Page[Document], error) {
		return h.DocumentMetadata(ctx, q, headers)
	})

	return pagination.FetchAll[Document](ctx, fetcher, q, cfg)
}

// DocumentContent downloads a document. Accepted query key:
// include_annotations.
func (h *Handler) DocumentContent(ctx context.Context, documentID string, q query.Query, headers http.Header) (*Content, error) {
	path := strings.Join([]string{DocumentsPath, url.PathEscape(documentID), "contents"}, "/")
	return h.content(ctx, path, query.Values(q, query.DocumentContentKeys), headers)
}

// PageContent downloads an image of one page of a document. Pages are
// 1-based; page values below 1 request page 1. Accepted query keys: dpi,
// height, width and include_annotations.
func (h *Handler) PageContent(ctx context.Context, documentID string, page int, q query.Query, headers http.Header) (*Content, error) {
	if page < 1 {
		page = 1
	}
	path := strings.Join([]string{DocumentsPath, url.PathEscape(documentID), "contents", strconv.Itoa(page)}, "/")
	return h.content(ctx, path, query.Values(q, query.PageContentKeys), headers)
}

// Get performs an authenticated GET of path with an already encoded query.
func (h *Handler) Get(ctx context.Context, path, encodedQuery string, headers http.Header) (*http.Response, error) {
	if encodedQuery != "" {
		path = path + "?" + encodedQuery
	}
	return h.client.Get(ctx, path, headers)
}

// Post performs an authenticated POST of payload to path.
func (h *Handler) Post(ctx context.Context, path string, payload io.Reader, headers http.Header) (*http.Response, error) {
	return h.client.Post(ctx, path, payload, headers)
}

// GetJSON performs Get and decodes the JSON body into v. A body that is not
// valid JSON is not an error: v is reset to its zero value and the response
// headers are still returned.
func (h *Handler) GetJSON(ctx context.Context, path, encodedQuery string, headers http.Header, v any) (http.Header, error) {
	resp, err := h.Get(ctx, path, encodedQuery, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		h.logger.Warn().
			Err(err).
			Str("path", path).
			Msg("Response body is not valid JSON, using empty value")
		resetValue(v)
	}

	return resp.Header, nil
}

// HasMore reports whether a metadata response indicates further pages.
// Only the exact string "False" ends pagination; a missing header does not.
func HasMore(header http.Header) bool {
	value := header.Get(HasMoreHeader)
	if value == "" {
		value = header.Get("X_HasMore")
	}
	return value != hasMoreFalse
}

func (h *Handler) content(ctx context.Context, path string, values url.Values, headers http.Header) (*Content, error) {
	key := cache.Key{Scope: h.scope, Path: path, Query: values}

	if h.cache != nil && len(headers) == 0 {
		entry, err := h.cache.Get(ctx, key)
		switch {
		case err == nil:
			h.logger.Debug().Str("path", path).Msg("Content cache hit")
			return &Content{
				Data:        entry.Data,
				ContentType: entry.ContentType,
				Header:      entry.Headers,
				Cached:      true,
			}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.Warn().Err(err).Str("path", path).Msg("Content cache get error")
		}
	}

	resp, err := h.Get(ctx, path, values.Encode(), headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, err
	}

	if h.cache != nil && len(headers) == 0 {
		if err := h.cache.Set(ctx, key, entry); err != nil {
			h.logger.Warn().Err(err).Str("path", path).Msg("Failed to cache content")
		}
	}

	return &Content{
		Data:        entry.Data,
		ContentType: entry.ContentType,
		Header:      entry.Headers,
	}, nil
}

// credentialScope derives a cache scope from the Basic token without
// exposing the password in Redis keys.
func credentialScope(authToken string) string {
	sum := sha256.Sum256([]byte(authToken))
	return hex.EncodeToString(sum[:8])
}

// resetValue sets the value v points to back to its zero value.
func resetValue(v any) {
	switch p := v.(type) {
	case *[]Document:
		*p = nil
	case *Document:
		*p = Document{}
	case *map[string]any:
		*p = map[string]any{}
	case *any:
		*p = map[string]any{}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && !rv.IsNil() {
			rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		}
	}
}
