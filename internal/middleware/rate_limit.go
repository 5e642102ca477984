package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimitConfig holds configuration for the rate limiter
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	KeyPrefix         string
}

// fixed one-minute window per client; returns {allowed, remaining}
var rateLimitScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('EXPIRE', KEYS[1], 60)
	end
	local limit = tonumber(ARGV[1])
	if current > limit then
		return {0, 0}
	end
	return {1, limit - current}
`)

// RedisRateLimit creates middleware for rate limiting requests using Redis.
// Requests pass through when Redis is unavailable.
func RedisRateLimit(client *redis.Client, config RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.Enabled || client == nil || config.RequestsPerMinute <= 0 {
			c.Next()
			return
		}

		now := time.Now()
		window := now.Unix() / 60
		key := fmt.Sprintf("%sratelimit:%s:%d", config.KeyPrefix, c.ClientIP(), window)

		allowed, remaining, err := checkRateLimit(c.Request.Context(), client, key, config.RequestsPerMinute)
		if err != nil {
			logger.Error("Rate limit check failed", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			c.Next()
			return
		}

		reset := (window + 1) * 60
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if !allowed {
			c.Header("Retry-After", strconv.FormatInt(reset-now.Unix(), 10))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			c.Abort()
			return
		}

		c.Next()
	}
}

func checkRateLimit(ctx context.Context, client *redis.Client, key string, limit int) (bool, int, error) {
	result, err := rateLimitScript.Run(ctx, client, []string{key}, limit).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit reply %v", result)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	return allowed == 1, int(remaining), nil
}
