package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"drawdash_backend/internal/store"
)

var limiterStore *store.Store

// InitRateLimiter wires the shared Redis store into the limiter. Without it
// the middleware is fail-open.
func InitRateLimiter(s *store.Store) {
	limiterStore = s
}

// RateLimit is a fixed-window limiter using INCR/EXPIRE.
// key format: rl:<window_seconds>:<client ip>
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiterStore == nil {
			c.Next()
			return
		}

		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		ctx := context.Background()

		val, err := limiterStore.IncrBy(ctx, key, 1)
		if err != nil {
			// fail-open on Redis trouble, the game endpoints stay usable
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			_ = limiterStore.Expire(ctx, key, window)
		}

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
