package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/handler"
)

// Decision is a limiter's verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // zero when Allowed
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// =============================================================================
// In-memory limiter
// =============================================================================

// RateLimiter is a Limiter local to one process.
type RateLimiter struct {
	max    int
	window time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*fixedWindow

	done      chan struct{}
	closeOnce sync.Once
}

type fixedWindow struct {
	start time.Time
	count int
}

// NewRateLimiter starts a limiter allowing limit requests per window and
// key. Close stops its sweeper.
func NewRateLimiter(limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		max:     limit,
		window:  window,
		logger:  logger,
		now:     time.Now,
		windows: make(map[string]*fixedWindow),
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.windows[key] = &fixedWindow{start: now, count: 1}
		return Decision{Allowed: true}, nil
	}
	if w.count < rl.max {
		w.count++
		return Decision{Allowed: true}, nil
	}
	return Decision{RetryAfter: rl.window - now.Sub(w.start)}, nil
}

// Reset forgets key's current window.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	delete(rl.windows, key)
	rl.mu.Unlock()
}

func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// sweep drops expired windows once per window length.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := rl.now()
		before := len(rl.windows)
		for key, w := range rl.windows {
			if now.Sub(w.start) >= rl.window {
				delete(rl.windows, key)
			}
		}
		removed := before - len(rl.windows)
		rl.mu.Unlock()

		if removed > 0 {
			rl.logger.Debug("Rate limiter sweep", "removed", removed)
		}
	}
}

// =============================================================================
// Redis limiter
// =============================================================================

// RedisRateLimiter shares counters between server replicas. Each window is
// its own key, so counters expire without a sweeper.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	namespace string
	max       int64
	window    time.Duration
	now       func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient, namespace string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		namespace: namespace,
		max:       int64(limit),
		window:    window,
		now:       time.Now,
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := rl.now()
	slot := now.UnixMilli() / rl.window.Milliseconds()
	redisKey := fmt.Sprintf("%s:ratelimit:%s:%d", rl.namespace, key, slot)

	var incr *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, rl.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if incr.Val() <= rl.max {
		return Decision{Allowed: true}, nil
	}
	windowEnd := time.UnixMilli((slot + 1) * rl.window.Milliseconds())
	return Decision{RetryAfter: windowEnd.Sub(now)}, nil
}

// =============================================================================
// Middleware
// =============================================================================

// RateLimitMiddleware limits requests per client IP.
type RateLimitMiddleware struct {
	limiter Limiter
	logger  *slog.Logger
}

func NewRateLimitMiddleware(limiter Limiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, logger: logger}
}

// Limit rejects requests over the limit with 429 and a Retry-After header.
// A failing limiter lets the request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)

		d, err := m.limiter.Allow(r.Context(), ip)
		if err != nil {
			m.logger.Warn("Rate limiter unavailable, allowing request", "ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("Rate limit exceeded", "ip", ip, "method", r.Method, "path", r.URL.Path)
		seconds := int(math.Ceil(d.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
		handler.ErrorResponse(w, r, m.logger, domain.RateLimit("middleware.rate_limit"))
	})
}

// getClientIP prefers the first X-Forwarded-For entry, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
