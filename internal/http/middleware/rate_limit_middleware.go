package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"otp-auth-backend/internal/http/response"
	"otp-auth-backend/internal/observability"
)

// Limiter decides whether one more request is allowed for a key within the
// configured window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	scope   string
}

func NewRateLimiter(limit int, window time.Duration, scope string) *RateLimiter {
	return &RateLimiter{limiter: NewLocalFixedWindowLimiter(), limit: limit, window: window, scope: scope}
}

func NewDistributedRateLimiter(limiter Limiter, limit int, window time.Duration, scope string) *RateLimiter {
	return &RateLimiter{limiter: limiter, limit: limit, window: window, scope: scope}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := rl.limiter.Allow(r.Context(), clientIPKey(r), rl.limit, rl.window)
			if err != nil {
				// Fail closed: a broken limiter backend must not turn
				// into an unthrottled auth endpoint.
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error")
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

type localFixedWindowLimiter struct {
	mu    sync.Mutex
	store map[string]*windowState
}

type windowState struct {
	windowStart time.Time
	count       int
}

func NewLocalFixedWindowLimiter() Limiter {
	return &localFixedWindowLimiter{store: make(map[string]*windowState)}
}

func (l *localFixedWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.store[key]
	if !ok || now.Sub(state.windowStart) >= window {
		l.store[key] = &windowState{windowStart: now, count: 1}
		return true, nil
	}
	if state.count >= limit {
		return false, nil
	}
	state.count++
	return true, nil
}

// RedisFixedWindowLimiter shares one counter per key across replicas.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, time.Now().UnixNano()/int64(window))
	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= int64(limit), nil
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
