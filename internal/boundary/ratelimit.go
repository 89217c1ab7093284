package boundary

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// redisTokenBucketScript mirrors pkg/kernel/limiter_redis.go's atomic Lua
// token bucket: refill by elapsed time, consume one token, clamp to
// capacity, self-expire the key after 60s of inactivity.
var redisTokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 60)

return {allowed, tokens}
`)

// RedisLimiter is a distributed token-bucket limiter shared across every
// boundary process, grounded on pkg/kernel/limiter_redis.go's
// RedisLimiterStore.
type RedisLimiter struct {
	client   *redis.Client
	rps      float64
	capacity float64
}

// NewRedisLimiter connects to addr with the given sustained rate (rps) and
// burst capacity.
func NewRedisLimiter(addr string, rps float64, capacity float64) *RedisLimiter {
	return &RedisLimiter{
		client:   redis.NewClient(&redis.Options{Addr: addr}),
		rps:      rps,
		capacity: capacity,
	}
}

// Allow runs the Lua script against key's bucket.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucketKey := fmt.Sprintf("veraseal:ratelimit:%s", key)
	now := float64(time.Now().UnixMicro()) / 1e6
	res, err := redisTokenBucketScript.Run(ctx, l.client, []string{bucketKey}, l.rps, l.capacity, now).Result()
	if err != nil {
		return false, fmt.Errorf("boundary: redis limiter: %w", err)
	}
	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return false, fmt.Errorf("boundary: redis limiter: unexpected script result")
	}
	allowed, _ := results[0].(int64)
	return allowed == 1, nil
}

// LocalLimiter is an in-process per-key token bucket, used as a fallback
// when no Redis address is configured, mirroring pkg/api/middleware.go's
// GlobalRateLimiter (per-IP visitor map with periodic cleanup).
type LocalLimiter struct {
	mu       sync.Mutex
	visitors map[string]*localVisitor
	rps      rate.Limit
	burst    int
}

type localVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter constructs a fallback limiter and starts its background
// cleanup goroutine.
func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	l := &LocalLimiter{
		visitors: make(map[string]*localVisitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go l.cleanupLoop()
	return l
}

func (l *LocalLimiter) cleanupLoop() {
	for {
		time.Sleep(1 * time.Minute)
		l.mu.Lock()
		for k, v := range l.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(l.visitors, k)
			}
		}
		l.mu.Unlock()
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &localVisitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	limiter := v.limiter
	l.mu.Unlock()

	return limiter.Allow(), nil
}

// RateLimitMiddleware enforces limiter per caller IP, writing a 429
// Problem Detail when exhausted.
func RateLimitMiddleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				WriteInternal(w, err)
				return
			}
			if !allowed {
				WriteTooManyRequests(w, 5)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}
