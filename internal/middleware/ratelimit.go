package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/socialreact/internal/logging"
)

// fixedWindowScript increments the window counter, starting its TTL on the
// first hit, and returns the count plus the remaining TTL in milliseconds.
var fixedWindowScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return {current, redis.call("PTTL", KEYS[1])}
`)

// RateLimitObserver is told about rejections and backend errors.
type RateLimitObserver interface {
	RateLimitExceeded(keyPrefix string)
	RateLimitError()
}

type RateLimiter struct {
	redis  redis.Scripter
	limit  int64
	window time.Duration
	prefix string
	keyFn  func(r *http.Request) string
	// failOpen controls behavior when Redis errors: when true, requests are allowed through.
	failOpen bool
	observer RateLimitObserver
}

func NewRateLimiter(client redis.Scripter, limit int64, window time.Duration, prefix string, keyFn func(r *http.Request) string, failOpen bool) *RateLimiter {
	return &RateLimiter{
		redis:    client,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFn:    keyFn,
		failOpen: failOpen,
	}
}

func (rl *RateLimiter) SetObserver(observer RateLimitObserver) {
	rl.observer = observer
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		keySuffix := rl.keyFn(r)
		if keySuffix == "" {
			// Fallback to IP if key function returns empty string
			keySuffix = GetClientIP(r)
		}
		key := rl.prefix + keySuffix

		count, ttl, err := rl.hit(r, key)
		if err != nil {
			logging.Error("Rate limit Redis error", map[string]interface{}{"error": err.Error(), "key": key})
			if rl.observer != nil {
				rl.observer.RateLimitError()
			}
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Rate limiting temporarily unavailable")
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > rl.limit {
			if rl.observer != nil {
				rl.observer.RateLimitExceeded(strings.TrimSuffix(rl.prefix, ":"))
			}
			retryAfter := int64((ttl + time.Second - 1) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) hit(r *http.Request, key string) (int64, time.Duration, error) {
	result, err := fixedWindowScript.Run(r.Context(), rl.redis, []string{key}, rl.window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(result) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %d values", len(result))
	}
	count, ok := result[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("rate limit script returned unexpected type %T", result[0])
	}
	ttlMillis, _ := result[1].(int64)
	return count, time.Duration(ttlMillis) * time.Millisecond, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetClientIP extracts the client IP from the request, respecting X-Forwarded-For
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (set by proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs; the first one is the client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
