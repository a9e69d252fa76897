package isuite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"snowalert/internal/config"
	"snowalert/internal/metrics"
	"snowalert/internal/types"
)

const (
	// tokenExpiryMargin is subtracted from a token's declared expiry: a token
	// inside the margin is treated as not valid so it is refreshed before it
	// actually expires mid-request.
	tokenExpiryMargin = 60 * time.Second

	// defaultTokenLifetime applies when the server omits expires_in.
	defaultTokenLifetime = 3600 * time.Second
)

// TokenCache is the process-wide in-memory holder for the OAuth2 access
// token. It is exclusively owned and mutated by TokenProvider; all field
// updates happen as a unit under the mutex so readers never observe a
// half-written token.
type TokenCache struct {
	mu          sync.Mutex
	accessToken string
	tokenType   string
	expiresAt   time.Time
}

// valid reports whether a usable token is cached: non-empty and more than
// the safety margin away from its expiry.
func (c *TokenCache) valid(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == "" {
		return "", false
	}
	if !now.Before(c.expiresAt.Add(-tokenExpiryMargin)) {
		return "", false
	}
	return c.accessToken, true
}

// set overwrites the cached token as a single unit.
func (c *TokenCache) set(token, tokenType string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
	c.tokenType = tokenType
	c.expiresAt = expiresAt
}

// clear empties the cache. No partial state survives.
func (c *TokenCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.tokenType = ""
	c.expiresAt = time.Time{}
}

// TokenStatus is a diagnostic snapshot of the cache, safe to render to
// operators (the token value itself is never exposed).
type TokenStatus struct {
	HasToken  bool   `json:"has_token"`
	Valid     bool   `json:"valid"`
	ExpiresIn int64  `json:"expires_in_seconds"`
	TokenType string `json:"token_type,omitempty"`
}

// status builds a TokenStatus for now.
func (c *TokenCache) status(now time.Time) TokenStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := TokenStatus{
		HasToken:  c.accessToken != "",
		TokenType: c.tokenType,
	}
	if st.HasToken {
		st.Valid = now.Before(c.expiresAt.Add(-tokenExpiryMargin))
		if remaining := c.expiresAt.Sub(now); remaining > 0 {
			st.ExpiresIn = int64(remaining.Seconds())
		}
	}
	return st
}

// tokenResponse is the OAuth2 token endpoint response shape.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenProvider acquires access tokens via the OAuth2 client-credentials
// grant and caches them to avoid redundant network calls. Safe for
// concurrent use: racing refreshes are collapsed into a single request.
type TokenProvider struct {
	cfg    config.ISuiteConfig
	base   *BaseClient
	cache  *TokenCache
	clock  types.Clock
	logger *slog.Logger
	group  singleflight.Group
}

// NewTokenProvider creates a TokenProvider. The supplied http.Client must
// carry the outbound timeout (the daemon configures 30s).
func NewTokenProvider(cfg config.ISuiteConfig, httpClient *http.Client, clock types.Clock, logger *slog.Logger) *TokenProvider {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenProvider{
		cfg:    cfg,
		base:   NewBaseClient(httpClient, "isuite-token", cfg.UserAgent),
		cache:  &TokenCache{},
		clock:  clock,
		logger: logger,
	}
}

// GetToken returns a usable access token. When the cached token is valid and
// forceRefresh is false it is returned without any network call; otherwise a
// client-credentials request is made. Configuration is validated as a unit
// before the request; any missing value is a configuration error and no
// partial attempt is made.
func (p *TokenProvider) GetToken(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if token, ok := p.cache.valid(p.clock.Now()); ok {
			return token, nil
		}
	}

	// Collapse concurrent refreshes into one token request; every waiter
	// receives the same result.
	v, err, _ := p.group.Do("token", func() (any, error) {
		// A racing caller may have refreshed while we waited.
		if !forceRefresh {
			if token, ok := p.cache.valid(p.clock.Now()); ok {
				return token, nil
			}
		}
		return p.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached token. Used by the delivery pipeline when the
// downstream endpoint rejects the bearer token.
func (p *TokenProvider) Invalidate() {
	p.logger.Info("invalidating cached OAuth2 token")
	p.cache.clear()
}

// Status returns a diagnostic snapshot of the token cache.
func (p *TokenProvider) Status() TokenStatus {
	return p.cache.status(p.clock.Now())
}

// fetchToken performs the client-credentials request and updates the cache
// on success. Failures of any kind leave the cache untouched.
func (p *TokenProvider) fetchToken(ctx context.Context) (string, error) {
	if err := p.cfg.Validate(); err != nil {
		return "", err
	}

	p.logger.Info("requesting new OAuth2 token", "token_url", p.cfg.TokenURL)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret.Unmask())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeAuthTokenFailed, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.base.Do(req)
	if err != nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return "", types.NewAppError(types.ErrCodeAuthTokenFailed, "token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.TokenRequests.WithLabelValues("rejected").Inc()
		return "", tokenStatusError(resp)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return "", types.NewAppError(types.ErrCodeAuthTokenFailed, "failed to decode token response", err)
	}
	if tok.AccessToken == "" {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return "", types.NewAppError(types.ErrCodeAuthTokenFailed, "token response carried no access_token", nil)
	}

	lifetime := defaultTokenLifetime
	if tok.ExpiresIn > 0 {
		lifetime = time.Duration(tok.ExpiresIn) * time.Second
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	p.cache.set(tok.AccessToken, tokenType, p.clock.Now().Add(lifetime))
	metrics.TokenRequests.WithLabelValues("success").Inc()

	p.logger.Info("OAuth2 token acquired", "expires_in_seconds", int64(lifetime.Seconds()))
	return tok.AccessToken, nil
}

// tokenStatusError maps a non-200 token endpoint response onto the
// authentication failure category, carrying whatever detail the server gave.
func tokenStatusError(resp *http.Response) error {
	body := readBody(resp)

	detail := ""
	var errResp tokenResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		detail = fmt.Sprintf(" - %s %s", errResp.Error, errResp.ErrorDescription)
	} else if len(body) > 0 {
		detail = " - " + truncate(string(body), 200)
	}

	return types.NewAppError(
		types.ErrCodeAuthTokenFailed,
		fmt.Sprintf("token endpoint returned HTTP %d%s", resp.StatusCode, detail),
		nil,
	)
}
