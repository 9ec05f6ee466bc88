package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig leaves ample headroom for a dispatch board polling
// several endpoints while still capping a runaway client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// bucketTTL is how long an idle client's bucket survives before eviction.
const bucketTTL = 10 * time.Minute

type clientBucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// limiter maps client IPs to token buckets and evicts idle ones so the map
// does not grow without bound under churning client addresses.
type limiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	cfg     RateLimitConfig
	sweepAt time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{
		clients: make(map[string]*clientBucket),
		cfg:     cfg,
		sweepAt: time.Now().Add(bucketTTL),
	}
}

func (l *limiter) bucket(key string, now time.Time) *clientBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.sweepAt) {
		for k, b := range l.clients {
			if now.Sub(b.lastSeen) > bucketTTL {
				delete(l.clients, k)
			}
		}
		l.sweepAt = now.Add(bucketTTL)
	}

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{tokens: float64(l.cfg.BurstSize), lastSeen: now}
		l.clients[key] = b
	}
	return b
}

// take refills the bucket for elapsed time and spends one token. It returns
// whether the request may proceed and, when it may not, the whole seconds
// until a token becomes available.
func (b *clientBucket) take(cfg RateLimitConfig, now time.Time) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = math.Min(
		float64(cfg.BurstSize),
		b.tokens+now.Sub(b.lastSeen).Seconds()*cfg.RequestsPerSecond,
	)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if cfg.RequestsPerSecond <= 0 {
		return false, 1
	}
	return false, int(math.Ceil((1 - b.tokens) / cfg.RequestsPerSecond))
}

// RateLimit throttles requests per client IP with a token bucket.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	lim := newLimiter(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			b := lim.bucket(c.RealIP(), now)

			ok, retryAfter := b.take(cfg, now)
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
