package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkforty/linkforty/internal/clickrecorder"
	"github.com/linkforty/linkforty/internal/metrics"
	"github.com/linkforty/linkforty/internal/resolver"
	"go.uber.org/zap"
)

// RedirectDeps groups the dependencies required by the public redirect
// surface.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver *resolver.Resolver
	Recorder *clickrecorder.Recorder
}

// RedirectHandler implements the public redirect, template-scoped
// redirect, and always-HTML preview routes.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver *resolver.Resolver
	recorder *clickrecorder.Recorder
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{logger: logger, resolver: deps.Resolver, recorder: deps.Recorder}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/:code/preview", h.Preview)
	router.Get("/:slug/:code", h.ResolveTemplate)
	router.Get("/:code", h.Resolve)
}

// Resolve handles GET /{code}.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	return h.handle(c, c.Params("code"), "", false)
}

// ResolveTemplate handles GET /{slug}/{code}.
func (h *RedirectHandler) ResolveTemplate(c *fiber.Ctx) error {
	return h.handle(c, c.Params("code"), c.Params("slug"), false)
}

// Preview handles GET /{code}/preview — always renders OG HTML with a
// meta-refresh, never a 302, never a click row.
func (h *RedirectHandler) Preview(c *fiber.Ctx) error {
	return h.handle(c, c.Params("code"), "", true)
}

func (h *RedirectHandler) handle(c *fiber.Ctx, code, slug string, previewOnly bool) error {
	if code == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	req := resolver.Request{
		Code:         code,
		TemplateSlug: slug,
		UserAgent:    c.Get("User-Agent"),
		AcceptLang:   c.Get("Accept-Language"),
		Referer:      c.Get("Referer"),
		RemoteIP:     c.IP(),
		RawQuery:     string(c.Request().URI().QueryString()),
		Query:        parseQuery(c),
	}

	start := time.Now()
	outcome := "not_found"
	defer func() { metrics.ResolveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds()) }()

	if previewOnly {
		decision, err := h.resolver.ResolvePreview(ctx, req)
		if err != nil {
			if errors.Is(err, resolver.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
			}
			h.logger.Error("preview resolve failed", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}
		outcome = "preview"
		return c.Type("html", "utf-8").SendString(decision.HTML)
	}

	decision, err := h.resolver.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		h.logger.Error("resolve failed", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	switch decision.Outcome {
	case resolver.OutcomeScraperHTML:
		outcome = "scraper"
		return c.Type("html", "utf-8").SendString(decision.HTML)
	case resolver.OutcomeInterstitial:
		outcome = "interstitial"
		if h.recorder != nil {
			h.recorder.RecordAsync(decision)
		}
		metrics.ClicksTotal.WithLabelValues(string(decision.Reason)).Inc()
		return c.Type("html", "utf-8").SendString(decision.HTML)
	default:
		outcome = "redirect"
		if h.recorder != nil {
			h.recorder.RecordAsync(decision)
		}
		metrics.ClicksTotal.WithLabelValues(string(decision.Reason)).Inc()
		return c.Redirect(decision.URL, fiber.StatusFound)
	}
}

func parseQuery(c *fiber.Ctx) map[string][]string {
	out := make(map[string][]string)
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		out[k] = append(out[k], string(value))
	})
	return out
}
