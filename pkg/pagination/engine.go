package pagination

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/etrieve-client/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	pageFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etrieve_pagination_fetches_total",
		Help: "Total number of page fetches performed by FetchAll",
	})

	truncationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etrieve_pagination_truncations_total",
		Help: "Total number of FetchAll calls stopped by LoopMax before exhaustion",
	})
)

// Config holds the pagination bounds.
type Config struct {
	// PerRequest is the page size sent as `limit`.
	PerRequest int
	// LoopMax is the maximum number of page fetches per FetchAll call.
	LoopMax int
	// Logger defaults to the global logger tagged with component=pagination.
	Logger *zerolog.Logger
}

// DefaultConfig returns 25 records per request and at most 10 requests.
func DefaultConfig() Config {
	return Config{
		PerRequest: 25,
		LoopMax:    10,
	}
}

// Page is one fetched page of results.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// PageFetcher fetches a single page for the given query. The query already
// carries `limit` and, after the first page, `offset`.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, q query.Query) (Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, q query.Query) (Page[T], error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, q query.Query) (Page[T], error) {
	return f(ctx, q)
}

// FetchAll accumulates pages from fetcher. base is not modified; an `offset`
// already present in base is the starting offset. If a fetch fails, the items
// accumulated so far are returned together with the error.
func FetchAll[T any](ctx context.Context, fetcher PageFetcher[T], base query.Query, cfg Config) ([]T, error) {
	if cfg.PerRequest <= 0 {
		return nil, fmt.Errorf("per_request must be > 0 (got %d)", cfg.PerRequest)
	}

	logger := log.With().Str("component", "pagination").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	start := time.Now()
	q := base.Clone()
	q["limit"] = cfg.PerRequest

	offset, hasOffset, err := startOffset(q)
	if err != nil {
		return nil, err
	}

	var out []T
	exhausted := false
	fetches := 0

	for fetches < cfg.LoopMax {
		if hasOffset {
			q["offset"] = offset
		}

		page, err := fetcher.FetchPage(ctx, q.Clone())
		fetches++
		pageFetchesTotal.Inc()
		if err != nil {
			return out, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}

		logger.Debug().
			Int("offset", offset).
			Int("items", len(page.Items)).
			Bool("has_more", page.HasMore).
			Msg("Fetched page")

		if len(page.Items) == 0 {
			exhausted = true
			break
		}

		out = append(out, page.Items...)

		if !page.HasMore {
			exhausted = true
			break
		}

		offset += cfg.PerRequest
		hasOffset = true
	}

	if !exhausted && cfg.LoopMax > 0 {
		truncationsTotal.Inc()
		logger.Warn().
			Int("loop_max", cfg.LoopMax).
			Int("per_request", cfg.PerRequest).
			Int("items", len(out)).
			Msg("Pagination stopped at loop_max, results may be truncated")
	}

	logger.Info().
		Int("fetches", fetches).
		Int("items", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return out, nil
}

// startOffset reads a caller-supplied offset. A missing or empty offset
// starts at 0 and is not sent on the first request.
func startOffset(q query.Query) (int, bool, error) {
	v, ok := q["offset"]
	if !ok || v == nil {
		delete(q, "offset")
		return 0, false, nil
	}

	s := fmt.Sprint(v)
	if s == "" {
		delete(q, "offset")
		return 0, false, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("offset must be an integer (got %q)", s)
	}
	return n, true, nil
}
