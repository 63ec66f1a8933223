// Package httpapi wires the Fiber application: middleware chain, route
// registration, and lifecycle.
package httpapi

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/linkforty/linkforty/internal/attribution"
	"github.com/linkforty/linkforty/internal/clickrecorder"
	"github.com/linkforty/linkforty/internal/eventbus"
	"github.com/linkforty/linkforty/internal/httpapi/handler"
	"github.com/linkforty/linkforty/internal/httpapi/middleware"
	"github.com/linkforty/linkforty/internal/resolver"
	"github.com/linkforty/linkforty/internal/store"
	"github.com/linkforty/linkforty/internal/webhook"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs to wire its
// routes.
type Dependencies struct {
	Logger      *zap.Logger
	Redis       *redis.Client
	Resolver    *resolver.Resolver
	Recorder    *clickrecorder.Recorder
	Attribution *attribution.Engine
	Webhooks    store.WebhookStore
	Dispatcher  *webhook.Dispatcher
	Bus         *eventbus.Bus
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with the full middleware chain
// and route set registered.
func New(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Recovery(logger))
	app.Use(middleware.CORS())
	app.Use(middleware.Logger(logger))

	s := &Server{app: app, deps: deps}
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	logger := s.deps.Logger

	// SDK + webhook-test routes carry their own full paths (see
	// handler.SDKHandler.Register), so their rate limit is scoped by
	// path prefix rather than a sub-router group.
	s.app.Use("/api/sdk", middleware.RateLimit(s.deps.Redis, middleware.SDKRateLimit(), logger))
	s.app.Use("/api/webhooks", middleware.RateLimit(s.deps.Redis, middleware.SDKRateLimit(), logger))
	handler.NewSDKHandler(handler.SDKDeps{
		Logger: logger, Resolver: s.deps.Resolver, Recorder: s.deps.Recorder, Attribution: s.deps.Attribution,
		Webhooks: s.deps.Webhooks, Dispatcher: s.deps.Dispatcher,
	}).Register(s.app)

	handler.NewLiveHandler(s.deps.Bus, logger).Register(s.app)

	// The redirect routes have no shared path prefix of their own (they
	// live at "/:code" etc off the root), so this limiter is applied
	// with an explicit skip for "/api/..." to avoid double-counting
	// requests already limited above — an unprefixed app.Use would
	// otherwise match every path regardless of registration order.
	redirectLimit := middleware.RateLimit(s.deps.Redis, middleware.RedirectRateLimit(), logger)
	s.app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Next()
		}
		return redirectLimit(c)
	})
	handler.NewRedirectHandler(handler.RedirectDeps{
		Logger: logger, Resolver: s.deps.Resolver, Recorder: s.deps.Recorder,
	}).Register(s.app)
}
