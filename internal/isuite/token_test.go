package isuite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowalert/internal/config"
	"snowalert/internal/types"
)

// --- Mock Clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testNow = time.Date(2026, 7, 14, 6, 0, 0, 0, time.UTC)

func testISuiteConfig(tokenURL, iflowURL string) config.ISuiteConfig {
	return config.ISuiteConfig{
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: types.SecretString("client-secret"),
		IFlowURL:     iflowURL,
		Timeout:      5 * time.Second,
		UserAgent:    "SnowAlert/1.0",
	}
}

// tokenServer serves client-credentials tokens tok-1, tok-2, ... and counts
// requests.
func tokenServer(t *testing.T, expiresIn int64) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var count atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := count.Add(1)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		resp := map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"token_type":   "Bearer",
		}
		if expiresIn > 0 {
			resp["expires_in"] = expiresIn
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func TestGetToken_CachesUntilExpiryMargin(t *testing.T) {
	srv, count := tokenServer(t, 120)
	clock := &mockClock{now: testNow}
	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), clock, nil)

	tok, err := p.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int64(1), count.Load())

	// Still comfortably inside the lifetime: served from cache.
	clock.Advance(59 * time.Second)
	tok, err = p.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int64(1), count.Load())

	// Inside the 60s safety margin (59s of the 120s remain): refreshed.
	clock.Advance(2 * time.Second)
	tok, err = p.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int64(2), count.Load())
}

func TestGetToken_DefaultLifetimeWhenOmitted(t *testing.T) {
	srv, count := tokenServer(t, 0)
	clock := &mockClock{now: testNow}
	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), clock, nil)

	_, err := p.GetToken(context.Background(), false)
	require.NoError(t, err)

	clock.Advance(3539 * time.Second)
	tok, err := p.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int64(1), count.Load())

	clock.Advance(2 * time.Second)
	tok, err = p.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestGetToken_ForceRefreshBypassesCache(t *testing.T) {
	srv, count := tokenServer(t, 3600)
	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), &mockClock{now: testNow}, nil)

	_, err := p.GetToken(context.Background(), false)
	require.NoError(t, err)

	tok, err := p.GetToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int64(2), count.Load())
}

func TestGetToken_InvalidateClearsCache(t *testing.T) {
	srv, count := tokenServer(t, 3600)
	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), &mockClock{now: testNow}, nil)

	_, err := p.GetToken(context.Background(), false)
	require.NoError(t, err)

	p.Invalidate()
	assert.False(t, p.Status().HasToken)

	tok, err := p.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int64(2), count.Load())
}

func TestGetToken_MissingConfigIsConfigError(t *testing.T) {
	p := NewTokenProvider(config.ISuiteConfig{}, http.DefaultClient, &mockClock{now: testNow}, nil)

	_, err := p.GetToken(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConfigMissing, types.CodeOf(err))
	assert.Contains(t, err.Error(), "ISUITE_OAUTH_TOKEN_URL")
	assert.Contains(t, err.Error(), "ISUITE_OAUTH_CLIENT_SECRET")
}

func TestGetToken_RejectedByServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "client authentication failed",
		})
	}))
	t.Cleanup(srv.Close)

	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), &mockClock{now: testNow}, nil)

	_, err := p.GetToken(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeAuthTokenFailed, types.CodeOf(err))
	assert.Contains(t, err.Error(), "invalid_client")
	assert.False(t, p.Status().HasToken)
}

func TestGetToken_EmptyAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer", "expires_in": 3600})
	}))
	t.Cleanup(srv.Close)

	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), &mockClock{now: testNow}, nil)

	_, err := p.GetToken(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeAuthTokenFailed, types.CodeOf(err))
}

func TestGetToken_ConcurrentRefreshCollapsed(t *testing.T) {
	var count atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-shared", "expires_in": 3600})
	}))
	t.Cleanup(srv.Close)

	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), &mockClock{now: testNow}, nil)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = p.GetToken(context.Background(), false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-shared", tokens[i])
	}
	assert.Equal(t, int64(1), count.Load())
}

func TestStatus_ReportsExpiry(t *testing.T) {
	srv, _ := tokenServer(t, 300)
	clock := &mockClock{now: testNow}
	p := NewTokenProvider(testISuiteConfig(srv.URL, srv.URL), srv.Client(), clock, nil)

	st := p.Status()
	assert.False(t, st.HasToken)
	assert.False(t, st.Valid)

	_, err := p.GetToken(context.Background(), false)
	require.NoError(t, err)

	st = p.Status()
	assert.True(t, st.HasToken)
	assert.True(t, st.Valid)
	assert.Equal(t, int64(300), st.ExpiresIn)
	assert.Equal(t, "Bearer", st.TokenType)

	// Inside the margin the token is held but no longer considered valid.
	clock.Advance(250 * time.Second)
	st = p.Status()
	assert.True(t, st.HasToken)
	assert.False(t, st.Valid)
	assert.Equal(t, int64(50), st.ExpiresIn)
}
