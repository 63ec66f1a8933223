package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration. KeyPrefix
// differentiates the redirect surface from the SDK surface: mobile app
// installs call the SDK endpoints at a very different rate than public
// redirect clicks, so each surface gets its own counter namespace and
// limit.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// RedirectRateLimit is the default limit for the public redirect surface.
func RedirectRateLimit() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 300, Window: time.Minute, KeyPrefix: "ratelimit:redirect"}
}

// SDKRateLimit is the default limit for the SDK JSON API surface.
func SDKRateLimit() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 100, Window: time.Minute, KeyPrefix: "ratelimit:sdk"}
}

// RateLimit creates a Redis-backed fixed-window rate limiting middleware
// using the key namespacing described above.
func RateLimit(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if redisClient == nil {
			return c.Next()
		}

		ctx := c.Context()
		ip := c.IP()
		key := config.KeyPrefix + ":" + ip

		result, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit redis error, failing open", zap.Error(err))
			return c.Next()
		}

		if result == 1 {
			redisClient.Expire(ctx, key, config.Window)
		}

		remaining := config.MaxRequests - int(result)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxInt(0, remaining)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		if result > int64(config.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
