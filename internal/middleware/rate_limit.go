package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitMiddleware creates a fixed-window limiter keyed by token subject,
// falling back to client IP. Without a Redis client it lets everything through.
func RateLimitMiddleware(redisClient *redis.Client, limit int, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || limit <= 0 {
			c.Next()
			return
		}

		who := c.GetString(SubjectKey)
		if who == "" {
			who = c.ClientIP()
		}
		key := "rate_limit:push:" + who

		// Use a pipeline to efficiently execute multiple commands
		pipe := redisClient.Pipeline()
		incr := pipe.Incr(c, key)
		pipe.Expire(c, key, duration)
		if _, err := pipe.Exec(c); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to execute redis pipeline"})
			return
		}

		if incr.Val() > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
