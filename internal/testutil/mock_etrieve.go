// Package testutil provides testing utilities for the Etrieve client.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// TokenPath is the path of the mock token endpoint.
const TokenPath = "/oauth/token"

// DocumentsPath is the path of the mock metadata endpoint.
const DocumentsPath = "/api/documents"

// tokenRequestBody is what a well-formed client-credentials request posts.
const tokenRequestBody = "grant_type=client_credentials&scope=openid"

// TokenResponse defines how the mock token endpoint answers.
type TokenResponse struct {
	StatusCode int
	// Body overrides the generated JSON when set.
	Body        string
	AccessToken string
	ExpiresIn   int
}

// MockEtrieve is a configurable mock of the token endpoint and the Etrieve
// content API.
type MockEtrieve struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	username  string
	password  string
	token     TokenResponse
	documents []map[string]any
	hasMore   *string

	// Tracking
	RequestCount      int
	TokenRequestCount int
	LastRequestHeader http.Header
	LastQuery         url.Values
	Offsets           []int
}

// NewMockEtrieve creates a mock server that accepts user "blah" with
// password "blech" and issues token "test-token" valid for an hour.
func NewMockEtrieve() *MockEtrieve {
	mock := &MockEtrieve{
		handlers: make(map[string]http.HandlerFunc),
		username: "blah",
		password: "blech",
		token: TokenResponse{
			StatusCode:  http.StatusOK,
			AccessToken: "test-token",
			ExpiresIn:   3600,
		},
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		if r.URL.Path == TokenPath {
			mock.TokenRequestCount++
		} else {
			mock.RequestCount++
			mock.LastRequestHeader = r.Header.Clone()
			mock.LastQuery = r.URL.Query()
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL, usable as the API base URL.
func (m *MockEtrieve) URL() string {
	return m.server.URL
}

// AuthURL returns the token endpoint URL.
func (m *MockEtrieve) AuthURL() string {
	return m.server.URL + TokenPath
}

// Client returns an HTTP client wired to the mock server.
func (m *MockEtrieve) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockEtrieve) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockEtrieve) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.TokenRequestCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
	m.Offsets = nil
}

// SetCredentials changes the username and password the token endpoint accepts.
func (m *MockEtrieve) SetCredentials(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username = username
	m.password = password
}

// SetTokenResponse changes how the token endpoint answers valid requests.
func (m *MockEtrieve) SetTokenResponse(resp TokenResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = resp
}

// SetDocuments sets the documents served by the metadata endpoint.
func (m *MockEtrieve) SetDocuments(docs []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = docs
}

// SetHasMore forces the X-HasMore header value. Pass nil to derive it from
// the remaining documents.
func (m *MockEtrieve) SetHasMore(value *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasMore = value
}

// SetHandler sets a custom handler for a specific path.
func (m *MockEtrieve) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockEtrieve) SetResponse(path string, statusCode int, body string, headers map[string]string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(statusCode)
		if body != "" {
			_, _ = w.Write([]byte(body))
		}
	})
}

// GetRequestCount returns the number of API (non-token) requests.
func (m *MockEtrieve) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetTokenRequestCount returns the number of token requests.
func (m *MockEtrieve) GetTokenRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenRequestCount
}

// GetLastRequestHeader returns the headers of the most recent API request.
func (m *MockEtrieve) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// GetLastQuery returns the query of the most recent API request.
func (m *MockEtrieve) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetOffsets returns the offsets requested from the metadata endpoint, in order.
func (m *MockEtrieve) GetOffsets() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.Offsets...)
}

func (m *MockEtrieve) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == TokenPath:
		m.tokenHandler(w, r)
	case !m.authorized(r):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Authorization has been denied for this request."})
	case r.URL.Path == DocumentsPath:
		m.documentsHandler(w, r)
	case strings.HasPrefix(r.URL.Path, DocumentsPath+"/"):
		m.contentHandler(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

func (m *MockEtrieve) tokenHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte(m.username+":"+m.password))
	token := m.token
	m.mu.RUnlock()

	if token.StatusCode == 0 {
		token.StatusCode = http.StatusOK
	}

	body, _ := io.ReadAll(r.Body)
	if r.Method != http.MethodPost ||
		string(body) != tokenRequestBody ||
		r.Header.Get("Authorization") != expected ||
		r.Header.Get("Accept") != "application/json" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	if token.Body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(token.StatusCode)
		_, _ = w.Write([]byte(token.Body))
		return
	}

	payload := map[string]any{
		"token_type": "Bearer",
		"expires_in": token.ExpiresIn,
	}
	if token.AccessToken != "" {
		payload["access_token"] = token.AccessToken
	}
	writeJSON(w, token.StatusCode, payload)
}

func (m *MockEtrieve) authorized(r *http.Request) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return r.Header.Get("Authorization") == "Bearer "+m.token.AccessToken
}

func (m *MockEtrieve) documentsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}
	offset, _ := strconv.Atoi(query.Get("offset"))

	m.mu.Lock()
	m.Offsets = append(m.Offsets, offset)
	docs := m.documents
	forced := m.hasMore
	m.mu.Unlock()

	page := []map[string]any{}
	if offset < len(docs) {
		end := offset + limit
		if end > len(docs) {
			end = len(docs)
		}
		page = docs[offset:end]
	}

	hasMore := "True"
	if offset+limit >= len(docs) {
		hasMore = "False"
	}
	if forced != nil {
		hasMore = *forced
	}
	if hasMore != "" {
		w.Header().Set("X-HasMore", hasMore)
	}

	writeJSON(w, http.StatusOK, page)
}

func (m *MockEtrieve) contentHandler(w http.ResponseWriter, r *http.Request) {
	// /api/documents/{id}/contents[/{page}]
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, DocumentsPath+"/"), "/")
	if len(parts) < 2 || parts[1] != "contents" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}

	if len(parts) == 3 {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "page:%s:%s", parts[0], parts[2])
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "content:%s", parts[0])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewDocuments builds n metadata records with sequential ids starting at 1.
func NewDocuments(n int) []map[string]any {
	docs := make([]map[string]any, n)
	for i := range docs {
		docs[i] = map[string]any{
			"id":   float64(i + 1),
			"name": fmt.Sprintf("Document %d", i+1),
		}
	}
	return docs
}
