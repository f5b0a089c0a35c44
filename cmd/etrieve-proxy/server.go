package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/etrieve-client/pkg/client"
	"github.com/Sternrassler/etrieve-client/pkg/documents"
	"github.com/Sternrassler/etrieve-client/pkg/metrics"
	"github.com/Sternrassler/etrieve-client/pkg/pagination"
	"github.com/Sternrassler/etrieve-client/pkg/query"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// requestTimeout bounds one proxied call including pagination.
const requestTimeout = 60 * time.Second

// requestIDHeader is echoed back, or generated when the caller sent none.
const requestIDHeader = "X-Request-Id"

type server struct {
	documents *documents.Handler
	logger    zerolog.Logger
}

func newServer(h *documents.Handler, logger zerolog.Logger) *server {
	return &server{documents: h, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /documents", s.metadataHandler)
	mux.HandleFunc("GET /documents/{id}/contents", s.contentHandler)
	mux.HandleFunc("GET /documents/{id}/contents/{page}", s.pageHandler)
	return s.withRequestID(mux)
}

// withRequestID tags the request context logger with a request id.
func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := s.logger.With().Str("request_id", id).Logger()
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))

		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// metadataHandler returns one page of metadata, or every page when all=true.
// per_request and loop_max tune the full listing.
func (s *server) metadataHandler(w http.ResponseWriter, r *http.Request) {
	q, err := query.Decode(r.URL.RawQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	all, _ := strconv.ParseBool(fmt.Sprint(q["all"]))
	if !all {
		page, err := s.documents.DocumentMetadata(ctx, q, nil)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		hasMore := "True"
		if !page.HasMore {
			hasMore = "False"
		}
		w.Header().Set(documents.HasMoreHeader, hasMore)
		s.writeJSON(w, nonNil(page.Items))
		return
	}

	cfg := pagination.DefaultConfig()
	if cfg.PerRequest, err = intParam(q, "per_request", cfg.PerRequest); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.LoopMax, err = intParam(q, "loop_max", cfg.LoopMax); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	docs, err := s.documents.AllDocumentMetadata(ctx, q, nil, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, nonNil(docs))
}

func (s *server) contentHandler(w http.ResponseWriter, r *http.Request) {
	q, err := query.Decode(r.URL.RawQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	content, err := s.documents.DocumentContent(ctx, r.PathValue("id"), q, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeContent(w, content)
}

func (s *server) pageHandler(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		http.Error(w, "page must be an integer", http.StatusBadRequest)
		return
	}

	q, err := query.Decode(r.URL.RawQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	content, err := s.documents.PageContent(ctx, r.PathValue("id"), page, q, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeContent(w, content)
}

// writeError maps client errors to proxy responses: upstream 401 becomes 502,
// other upstream statuses pass through and a missing session is 503.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	var (
		authErr   *client.AuthenticationError
		statusErr *client.StatusError
	)

	switch {
	case errors.Is(err, client.ErrSessionUnavailable):
		logger.Warn().Err(err).Msg("Etrieve session unavailable")
		http.Error(w, "etrieve session unavailable", http.StatusServiceUnavailable)
	case errors.As(err, &authErr):
		http.Error(w, authErr.Error(), http.StatusBadGateway)
	case errors.As(err, &statusErr):
		if ct := statusErr.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(statusErr.StatusCode)
		_, _ = w.Write(statusErr.Body)
	default:
		logger.Error().Err(err).Msg("Etrieve request failed")
		http.Error(w, fmt.Sprintf("etrieve request failed: %v", err), http.StatusBadGateway)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeContent(w http.ResponseWriter, content *documents.Content) {
	if content.ContentType != "" {
		w.Header().Set("Content-Type", content.ContentType)
	}
	cacheStatus := "MISS"
	if content.Cached {
		cacheStatus = "HIT"
	}
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Data)
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func intParam(q query.Query, key string, fallback int) (int, error) {
	v, ok := q[key]
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(fmt.Sprint(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func nonNil(docs []documents.Document) []documents.Document {
	if docs == nil {
		return []documents.Document{}
	}
	return docs
}
