package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateLimiter(t *testing.T, limit int, window time.Duration) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(limit, window, newTestLogger())
	t.Cleanup(rl.Close)
	return rl
}

func allow(t *testing.T, l Limiter, key string) bool {
	t.Helper()
	d, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	return d.Allowed
}

// fakeClock is advanced by hand.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := newTestRateLimiter(t, 5, time.Minute)

	for i := 0; i < 5; i++ {
		assert.True(t, allow(t, rl, "192.168.1.1"), "request %d", i+1)
	}
	assert.False(t, allow(t, rl, "192.168.1.1"), "6th request should be denied")
	assert.True(t, allow(t, rl, "192.168.1.2"), "other keys have their own window")
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := newTestRateLimiter(t, 2, time.Minute)
	rl.now = clock.now

	allow(t, rl, "ip")
	allow(t, rl, "ip")

	clock.advance(20 * time.Second)
	d, err := rl.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	clock.advance(40 * time.Second)
	assert.True(t, allow(t, rl, "ip"), "a new window starts once the old one ends")
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := newTestRateLimiter(t, 1, time.Minute)

	allow(t, rl, "ip")
	assert.False(t, allow(t, rl, "ip"))

	rl.Reset("ip")
	assert.True(t, allow(t, rl, "ip"))
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, newTestLogger())
	rl.Close()
	rl.Close()
}

// =============================================================================
// RedisRateLimiter Tests
// =============================================================================

func TestRedisRateLimiter_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRedisRateLimiter(client, "relay", 10, time.Minute)
	_, err := rl.Allow(context.Background(), "ip")
	assert.Error(t, err)
}

func TestRedisRateLimiter_CountsAcrossWindow(t *testing.T) {
	addr := os.Getenv("RELAY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RELAY_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	namespace := fmt.Sprintf("relaytest-%d", time.Now().UnixNano())
	rl := NewRedisRateLimiter(client, namespace, 2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := rl.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
	}

	d, err := rl.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	other, err := rl.Allow(ctx, "203.0.113.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are counted separately")

	now = now.Add(time.Minute)
	d, err = rl.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "next window starts fresh")
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}

func serveLimited(wrapped http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/pricing/preview", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	mw := NewRateLimitMiddleware(newTestRateLimiter(t, 2, time.Minute), newTestLogger())

	called := 0
	wrapped := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = serveLimited(wrapped, nil).Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, called)
}

func TestRateLimitMiddleware_ErrorBody(t *testing.T) {
	mw := NewRateLimitMiddleware(newTestRateLimiter(t, 1, 30*time.Second), newTestLogger())
	wrapped := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serveLimited(wrapped, nil)
	rec := serveLimited(wrapped, nil)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit", body.Error.Code)

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retryAfter >= 1 && retryAfter <= 30, "Retry-After %d should reflect the window", retryAfter)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	called := false
	wrapped := NewRateLimitMiddleware(failingLimiter{}, newTestLogger()).Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := serveLimited(wrapped, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRateLimitMiddleware_KeysByClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"X-Forwarded-For", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18, 150.172.238.178"}},
		{"X-Real-IP", map[string]string{"X-Real-IP": "203.0.113.195"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := newTestRateLimiter(t, 1, time.Minute)
			wrapped := NewRateLimitMiddleware(rl, newTestLogger()).Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			serveLimited(wrapped, tt.headers)
			assert.False(t, allow(t, rl, "203.0.113.195"), "limit should be keyed by the forwarded client IP")
			assert.True(t, allow(t, rl, "10.0.0.1"), "proxy IP should not be limited")
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr with port", "10.0.0.1:1234", nil, "10.0.0.1"},
		{"remote addr without port", "10.0.0.1", nil, "10.0.0.1"},
		{"forwarded wins", "10.0.0.1:1", map[string]string{"X-Forwarded-For": " 1.2.3.4 ,5.6.7.8", "X-Real-IP": "9.9.9.9"}, "1.2.3.4"},
		{"empty forwarded falls through", "10.0.0.1:1", map[string]string{"X-Forwarded-For": " ,", "X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
