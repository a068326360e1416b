package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/ezkiller2517/arkzkh-app/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// rateKey prefers the authenticated subject (NAT-friendly) and falls back to
// the client IP.
func rateKey(c *gin.Context) string {
	if sub, ok := Claims(c)["sub"].(string); ok && sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func tooManyRequests(c *gin.Context, retryAfter string) {
	c.Header("Retry-After", retryAfter)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded", "code": "RATE_LIMITED"})
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key
// limit. Each call owns its limiter set, so routes can be limited independently.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	set := newLimiterSet(rps, burst, time.Now)
	return func(c *gin.Context) {
		if !set.get(rateKey(c)).Allow() {
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			tooManyRequests(c, "1")
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}

// minLimiterIdle bounds how soon an unused limiter may be dropped.
const minLimiterIdle = 3 * time.Minute

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterSet keeps one limiter per key and drops keys idle for longer than
// a full refill, since a fresh limiter behaves the same.
type limiterSet struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	swept   time.Time
	entries map[string]*limiterEntry
}

func newLimiterSet(rps float64, burst int, now func() time.Time) *limiterSet {
	if burst < 1 {
		burst = 1
	}
	idle := minLimiterIdle
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &limiterSet{rps: rate.Limit(rps), burst: burst, idle: idle, now: now, swept: now(), entries: map[string]*limiterEntry{}}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.swept) >= s.idle {
		for k, e := range s.entries {
			if now.Sub(e.seen) >= s.idle {
				delete(s.entries, k)
			}
		}
		s.swept = now
	}
	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = e
	}
	e.seen = now
	return e.lim
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NewRateLimiter builds the limiter selected by cfg: a pass-through when
// disabled, the Redis limiter when requested and a client is available,
// otherwise the in-memory one.
func NewRateLimiter(cfg config.RateLimitConfig, client redis.UniversalClient, scope string) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.UseRedis && client != nil {
		return RedisRateLimitMiddleware(client, scope, cfg.RPS, cfg.Burst, secondsOf(cfg.WindowSeconds))
	}
	return RateLimitMiddleware(cfg.RPS, cfg.Burst)
}
