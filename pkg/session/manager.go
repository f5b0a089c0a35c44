package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/etrieve-client/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// TokenRequestBody is the form body posted to the token endpoint.
const TokenRequestBody = "grant_type=client_credentials&scope=openid"

// maxTokenResponseBytes bounds how much of a token response is read.
const maxTokenResponseBytes = 1 << 20

// Config holds the session manager configuration.
type Config struct {
	Credentials config.Credentials

	// HTTPClient performs the token exchange. Defaults to Credentials.HTTPClient().
	HTTPClient *http.Client

	// Logger defaults to the global logger tagged with component=session.
	Logger *zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager owns the credentials and the bearer-token session derived from
// them. It is safe for concurrent use; at most one token exchange runs at a
// time and concurrent callers share its result.
type Manager struct {
	creds      config.Credentials
	authToken  string
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token

	group singleflight.Group
}

// tokenResponse is the subset of the token endpoint's JSON we read.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// NewManager creates a session manager with an inactive session.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		creds:      cfg.Credentials,
		authToken:  TokenOf(cfg.Credentials.Username, cfg.Credentials.Password),
		httpClient: cfg.HTTPClient,
		now:        cfg.Now,
	}

	if m.httpClient == nil {
		m.httpClient = cfg.Credentials.HTTPClient()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if cfg.Logger != nil {
		m.logger = *cfg.Logger
	} else {
		m.logger = log.With().Str("component", "session").Logger()
	}

	return m
}

// TokenOf returns the Basic credential for user and password:
// base64("user:password").
func TokenOf(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}

// AuthToken returns the Basic credential derived from the configured
// username and password.
func (m *Manager) AuthToken() string {
	return m.authToken
}

// IsActive reports whether a bearer token is held and has not entered the
// expiry margin.
func (m *Manager) IsActive() bool {
	_, ok := m.activeSession()
	return ok
}

// Session returns a snapshot of the current session, active or not.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == nil {
		return Session{Headers: http.Header{}}
	}
	return newSession(m.token.AccessToken, m.token.Expiry)
}

// Acquire returns the active session, exchanging credentials for a new
// bearer token first when none is active. A failed exchange leaves the
// session inactive and returns an *AcquireError matching
// ErrSessionUnavailable.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	if s, ok := m.activeSession(); ok {
		TokenAcquisitions.WithLabelValues("reused").Inc()
		m.logger.Debug().Time("expires_at", s.ExpiresAt).Msg("Reusing active session")
		return s, nil
	}

	// The exchange outlives any single caller: it runs detached from ctx,
	// bounded by the credentials timeout, and each caller waits on its own ctx.
	ch := m.group.DoChan("acquire", func() (any, error) {
		if s, ok := m.activeSession(); ok {
			return s, nil
		}

		exchangeCtx, cancel := m.exchangeContext(ctx)
		defer cancel()
		return m.exchange(exchangeCtx)
	})

	select {
	case <-ctx.Done():
		return Session{}, &AcquireError{Reason: ReasonTransport, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Session{}, res.Err
		}
		if res.Shared {
			m.logger.Debug().Msg("Joined in-flight token acquisition")
		}
		return res.Val.(Session).clone(), nil
	}
}

func (m *Manager) exchangeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if m.creds.Timeout > 0 {
		return context.WithTimeout(detached, m.creds.Timeout)
	}
	return context.WithCancel(detached)
}

// ForceReconnect discards the current session and acquires a new one.
func (m *Manager) ForceReconnect(ctx context.Context) (Session, error) {
	m.Reset()
	return m.Acquire(ctx)
}

// Reset clears the bearer token, expiry and headers.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()

	SessionResets.Inc()
}

// Token implements oauth2.TokenSource so the session can back an
// oauth2.Transport.
func (m *Manager) Token() (*oauth2.Token, error) {
	s, err := m.Acquire(context.Background())
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: s.BearerToken,
		TokenType:   "Bearer",
		Expiry:      s.ExpiresAt,
	}, nil
}

func (m *Manager) activeSession() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == nil {
		return Session{}, false
	}

	s := newSession(m.token.AccessToken, m.token.Expiry)
	if !s.Active(m.now()) {
		return Session{}, false
	}
	return s, true
}

// exchange performs one client-credentials request against the token
// endpoint and stores the resulting token.
func (m *Manager) exchange(ctx context.Context) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.creds.AuthURL, strings.NewReader(TokenRequestBody))
	if err != nil {
		return Session{}, m.fail(&AcquireError{Reason: ReasonTransport, Err: fmt.Errorf("create token request: %w", err)})
	}

	req.Header.Set("Authorization", "Basic "+m.authToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	m.logger.Debug().Str("auth_url", m.creds.AuthURL).Msg("Requesting bearer token")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Session{}, m.fail(&AcquireError{Reason: ReasonTransport, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return Session{}, m.fail(&AcquireError{Reason: ReasonTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("read token response: %w", err)})
	}

	// Error responses are decoded too: they simply lack an access_token.
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Session{}, m.fail(&AcquireError{Reason: ReasonDecode, StatusCode: resp.StatusCode, Err: err})
	}

	if tr.AccessToken == "" {
		return Session{}, m.fail(&AcquireError{Reason: ReasonRejected, StatusCode: resp.StatusCode})
	}

	expiresIn := parseExpiresIn(tr.ExpiresIn)
	now := m.now()
	token := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      now.Add(time.Duration(expiresIn) * time.Second),
		ExpiresIn:   expiresIn,
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	TokenAcquisitions.WithLabelValues("success").Inc()
	m.logger.Info().
		Int64("expires_in", expiresIn).
		Time("expires_at", token.Expiry).
		Msg("Bearer token acquired")

	return newSession(token.AccessToken, token.Expiry), nil
}

// fail resets the session and records the failed acquisition.
func (m *Manager) fail(err *AcquireError) error {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()

	SessionResets.Inc()
	TokenAcquisitions.WithLabelValues(err.Reason).Inc()
	m.logger.Warn().
		Str("reason", err.Reason).
		Int("status", err.StatusCode).
		AnErr("cause", err.Err).
		Msg("Token acquisition failed, session inactive")

	return err
}

// parseExpiresIn accepts integer, float or numeric-string values and falls
// back to 0 for anything else.
func parseExpiresIn(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}
