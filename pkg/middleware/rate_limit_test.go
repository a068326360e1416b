package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/ezkiller2517/arkzkh-app/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	r := gin.New()
	r.Use(RateLimitMiddleware(10, 2)) // generous rate
	r.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/ok"))
	require.Equal(t, http.StatusOK, hit(r, "/ok"))

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))-before)
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(2, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/limited"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/limited"))

	// one token is back after 0.5s
	time.Sleep(600 * time.Millisecond)
	require.Equal(t, http.StatusOK, hit(r, "/limited"))
}

func TestRateLimitMiddleware_UsesSubjectWhenPresent(t *testing.T) {
	r := gin.New()
	var sub string
	r.Use(func(c *gin.Context) {
		c.Set(ClaimsKey, map[string]interface{}{"sub": sub})
		c.Next()
	})
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/u", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	sub = "user-123"
	require.Equal(t, http.StatusOK, hit(r, "/u"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/u"))

	// same IP, different subject
	sub = "user-456"
	require.Equal(t, http.StatusOK, hit(r, "/u"))
}

func TestLimiterSetDropsIdleKeys(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	set := newLimiterSet(1, 5, func() time.Time { return now })
	require.Equal(t, minLimiterIdle, set.idle)

	first := set.get("ip:10.0.0.1")
	set.get("ip:10.0.0.2")
	require.Equal(t, 2, set.size())
	require.Same(t, first, set.get("ip:10.0.0.1"), "a live key keeps its limiter")

	now = now.Add(2 * time.Minute)
	set.get("ip:10.0.0.1")
	now = now.Add(2 * time.Minute)
	set.get("ip:10.0.0.3")
	require.Equal(t, 2, set.size(), "only the key idle past the window is gone")

	slow := newLimiterSet(0.5, 200, func() time.Time { return now })
	require.Equal(t, 400*time.Second, slow.idle, "idle window covers a full refill")
}
