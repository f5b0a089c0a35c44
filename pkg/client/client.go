// Package client provides the authenticated request dispatcher for the
// Etrieve content API: it makes sure a session is active, merges per-call
// headers over the session headers and classifies responses.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/etrieve-client/pkg/config"
	"github.com/Sternrassler/etrieve-client/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for dispatched requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etrieve_requests_total",
		Help: "Total Etrieve API requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etrieve_request_duration_seconds",
		Help:    "Etrieve API request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	sessionUnavailableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etrieve_session_unavailable_total",
		Help: "Total calls short-circuited because no session could be established",
	})
)

// AuthTokenHeader carries the Basic credential token on every dispatched
// call. It is always set from the session manager and cannot be overridden.
const AuthTokenHeader = "Auth-Token"

// maxErrorBodyBytes bounds how much of an error response body is kept.
const maxErrorBodyBytes = 64 << 10

// Operation is a unit of work run by Execute with the effective headers for
// that call.
type Operation func(ctx context.Context, headers http.Header) (*http.Response, error)

// Client dispatches authenticated requests against the content API.
type Client struct {
	httpClient *http.Client
	session    *session.Manager
	baseURL    string
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	Credentials config.Credentials

	// HTTPClient is shared by the token exchange and API calls.
	// Defaults to Credentials.HTTPClient().
	HTTPClient *http.Client

	// Logger defaults to the global logger tagged with component=etrieve-client.
	Logger *zerolog.Logger

	// Now is passed to the session manager. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns a configuration for the given credentials.
func DefaultConfig(creds config.Credentials) Config {
	return Config{Credentials: creds}
}

// New creates a client with an inactive session. No request is made until
// the first call.
func New(cfg Config) (*Client, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cfg.Credentials.HTTPClient()
	}

	logger := log.With().Str("component", "etrieve-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	sessionLogger := logger.With().Str("subcomponent", "session").Logger()
	manager := session.NewManager(session.Config{
		Credentials: cfg.Credentials,
		HTTPClient:  httpClient,
		Logger:      &sessionLogger,
		Now:         cfg.Now,
	})

	return &Client{
		httpClient: httpClient,
		session:    manager,
		baseURL:    strings.TrimRight(cfg.Credentials.BaseURL, "/"),
		logger:     logger,
	}, nil
}

// Session returns the session manager backing the client.
func (c *Client) Session() *session.Manager {
	return c.session
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute ensures the session is active and runs op with the session headers
// overlaid by scoped. The Auth-Token marker header is always taken from the
// session manager. If no session can be established op is not run and an
// error matching ErrSessionUnavailable is returned.
func (c *Client) Execute(ctx context.Context, scoped http.Header, op Operation) (*http.Response, error) {
	s, err := c.session.Acquire(ctx)
	if err != nil {
		sessionUnavailableTotal.Inc()
		c.logger.Warn().Err(err).Msg("Session unavailable, request not sent")
		return nil, err
	}

	return op(ctx, c.mergeHeaders(s, scoped))
}

// Get performs an authenticated GET. path may be relative to the base URL or
// an absolute URL.
func (c *Client) Get(ctx context.Context, path string, headers http.Header) (*http.Response, error) {
	return c.Execute(ctx, headers, func(ctx context.Context, h http.Header) (*http.Response, error) {
		return c.RawGet(ctx, path, h)
	})
}

// Post performs an authenticated POST.
func (c *Client) Post(ctx context.Context, path string, payload io.Reader, headers http.Header) (*http.Response, error) {
	return c.Execute(ctx, headers, func(ctx context.Context, h http.Header) (*http.Response, error) {
		return c.RawPost(ctx, path, payload, h)
	})
}

// RawGet performs a GET with exactly the given headers and no implicit
// authentication. Use it inside Execute to share one session across several
// calls.
func (c *Client) RawGet(ctx context.Context, path string, headers http.Header) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, headers)
}

// RawPost performs a POST with exactly the given headers and no implicit
// authentication.
func (c *Client) RawPost(ctx context.Context, path string, payload io.Reader, headers http.Header) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, payload, headers)
}

// URL resolves path against the base URL. Paths beginning with "http" are
// returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) mergeHeaders(s session.Session, scoped http.Header) http.Header {
	effective := s.Headers.Clone()
	if effective == nil {
		effective = http.Header{}
	}
	for key, values := range scoped {
		effective[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	effective.Set(AuthTokenHeader, c.session.AuthToken())
	return effective
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	url := c.URL(path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		req.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Msg("Executing Etrieve request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		c.logger.Error().Err(err).Str("method", method).Str("url", url).Msg("HTTP request failed")
		return nil, err
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	return c.classify(resp)
}

// classify returns 200 responses unchanged, turns 401 into an
// *AuthenticationError and every other status into a *StatusError. Error
// responses are drained and closed.
func (c *Client) classify(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	url := resp.Request.URL.String()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("url", url).Msg("Etrieve request unauthorized")
		return nil, &AuthenticationError{URL: url, Body: body}
	}

	c.logger.Warn().
		Str("url", url).
		Int("status", resp.StatusCode).
		Msg("Etrieve request error")

	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        url,
		Header:     resp.Header.Clone(),
		Body:       body,
	}
}
