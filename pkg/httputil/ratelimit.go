package httputil

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
	// TrustProxyHeaders keys requests on X-Forwarded-For or X-Real-IP. Only
	// enable it behind a proxy that overwrites those headers; otherwise
	// callers pick their own bucket.
	TrustProxyHeaders bool
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
		BurstSize:         60,
	}
}

func (c RateLimitConfig) capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// interval is the time it takes to earn one token.
func (c RateLimitConfig) interval() time.Duration {
	return c.WindowDuration / time.Duration(c.RequestsPerWindow)
}

// RateLimiter is an in-memory token bucket per key
type RateLimiter struct {
	config  RateLimitConfig
	clock   clockwork.Clock
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
}

// NewRateLimiter creates a rate limiter. A nil clock uses the real one.
func NewRateLimiter(config RateLimitConfig, clock clockwork.Clock) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.WindowDuration <= 0 {
		config.WindowDuration = def.WindowDuration
	}
	if config.RequestsPerWindow <= 0 {
		config.RequestsPerWindow = def.RequestsPerWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		config:  config,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a token for key and reports whether one was available, the
// tokens left and, when denied, how long until the next token.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.config.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}

	// Whole tokens earned since lastUpdate. lastUpdate only moves by the
	// time those tokens account for, so partial progress carries over.
	interval := rl.config.interval()
	if refill := int(now.Sub(b.lastUpdate) / interval); refill > 0 {
		b.tokens += refill
		b.lastUpdate = b.lastUpdate.Add(time.Duration(refill) * interval)
		if b.tokens >= rl.config.capacity() {
			b.tokens = rl.config.capacity()
			b.lastUpdate = now
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens, 0
	}
	return false, 0, interval - now.Sub(b.lastUpdate)
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware rejects requests over the limit with 429, keyed by
// client IP.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, retryAfter := limiter.Allow("ip:" + ClientIP(r, limiter.config.TrustProxyHeaders))

			reset := limiter.clock.Now().Add(limiter.config.WindowDuration).Unix()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
				WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// ClientIP returns the remote address without its port. With trustProxy it
// prefers the first X-Forwarded-For hop, then X-Real-IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return realIP
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
