package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, client *redis.Client, cfg RateLimitConfig) *fiber.App {
	app := fiber.New()
	app.Use(RateLimit(client, cfg, zap.NewNop()))
	app.Get("/x", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	app := newTestApp(t, client, RateLimitConfig{MaxRequests: 3, Window: 60 * time.Second, KeyPrefix: "test:allow"})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/x", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRateLimit_BlocksOverLimit(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	app := newTestApp(t, client, RateLimitConfig{MaxRequests: 2, Window: 60 * time.Second, KeyPrefix: "test:block"})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/x", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	req := httptest.NewRequest("GET", "/x", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimit_NilClientIsNoop(t *testing.T) {
	app := newTestApp(t, nil, RedirectRateLimit())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/x", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}
