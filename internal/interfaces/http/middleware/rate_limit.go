package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const rateLimitWindow = time.Minute

// RateLimit implements a fixed one-minute window per client IP using Redis.
// Requests are let through when Redis is unreachable.
func RateLimit(limit int, client redis.UniversalClient, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s", c.ClientIP())

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.WithError(err).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, rateLimitWindow).Err(); err != nil {
				log.WithError(err).Warn("failed to set rate limit window")
			}
		}

		ttl, err := client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = rateLimitWindow
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": int(ttl.Seconds()),
			})
			return
		}

		c.Next()
	}
}
