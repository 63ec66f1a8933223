package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/linkforty/linkforty/internal/attribution"
	"github.com/linkforty/linkforty/internal/clickrecorder"
	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/metrics"
	"github.com/linkforty/linkforty/internal/resolver"
	"github.com/linkforty/linkforty/internal/store"
	"github.com/linkforty/linkforty/internal/webhook"
	"go.uber.org/zap"
)

// SDKDeps groups the dependencies required by the mobile SDK JSON API
// surface.
type SDKDeps struct {
	Logger      *zap.Logger
	Resolver    *resolver.Resolver
	Recorder    *clickrecorder.Recorder
	Attribution *attribution.Engine
	Webhooks    store.WebhookStore
	Dispatcher  *webhook.Dispatcher
}

// SDKHandler implements install reporting, attribution lookup, in-app
// event tracking, SDK-variant resolve, and the webhook test endpoint.
type SDKHandler struct {
	logger      *zap.Logger
	resolver    *resolver.Resolver
	recorder    *clickrecorder.Recorder
	attribution *attribution.Engine
	webhooks    store.WebhookStore
	dispatcher  *webhook.Dispatcher
}

// NewSDKHandler creates an SDK handler with the provided dependencies.
func NewSDKHandler(deps SDKDeps) *SDKHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SDKHandler{
		logger: logger, resolver: deps.Resolver, recorder: deps.Recorder, attribution: deps.Attribution,
		webhooks: deps.Webhooks, dispatcher: deps.Dispatcher,
	}
}

// Register wires SDK routes onto the provided router.
func (h *SDKHandler) Register(router fiber.Router) {
	sdk := router.Group("/api/sdk/v1")
	sdk.Post("/install", h.ReportInstall)
	sdk.Get("/attribution/:fingerprint", h.GetAttribution)
	sdk.Post("/event", h.TrackEvent)
	sdk.Get("/resolve/:slug/:code", h.ResolveTemplate)
	sdk.Get("/resolve/:code", h.Resolve)

	router.Post("/api/webhooks/:id/test", h.TestWebhook)
}

type installRequest struct {
	IPAddress              string `json:"ip_address"`
	UserAgent              string `json:"user_agent"`
	Timezone               string `json:"timezone"`
	Language               string `json:"language"`
	ScreenWidth            int    `json:"screen_width"`
	ScreenHeight           int    `json:"screen_height"`
	Platform               string `json:"platform"`
	PlatformVersion        string `json:"platform_version"`
	DeviceID               string `json:"device_id"`
	AttributionWindowHours int    `json:"attribution_window_hours"`
}

type installResponse struct {
	InstallID       string                 `json:"install_id"`
	Attributed      bool                   `json:"attributed"`
	ConfidenceScore int                    `json:"confidence_score"`
	MatchedFactors  []domain.MatchedFactor `json:"matched_factors"`
	DeepLinkData    map[string]any         `json:"deep_link_data"`
}

// ReportInstall handles POST /api/sdk/v1/install.
func (h *SDKHandler) ReportInstall(c *fiber.Ctx) error {
	var req installRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.UserAgent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_agent is required"})
	}

	ip := req.IPAddress
	if ip == "" {
		ip = c.IP()
	}

	signals := domain.FingerprintSignals{
		IP: ip, UserAgent: req.UserAgent, Timezone: req.Timezone, Language: req.Language,
		ScreenWidth: req.ScreenWidth, ScreenHeight: req.ScreenHeight,
		PlatformName: req.Platform, PlatformVersion: req.PlatformVersion,
	}

	ctx := requestCtx(c)
	install, err := h.attribution.ReportInstall(ctx, signals, req.AttributionWindowHours)
	if err != nil {
		h.logger.Error("report install failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	attributed := install.Attributed()
	metrics.InstallsTotal.WithLabelValues(boolLabel(attributed)).Inc()

	score := 0
	if install.ConfidenceScore != nil {
		score = *install.ConfidenceScore
	}
	deepLinkData := install.DeepLinkPayload
	if deepLinkData == nil {
		deepLinkData = map[string]any{}
	}

	return c.JSON(installResponse{
		InstallID: install.ID, Attributed: attributed, ConfidenceScore: score,
		MatchedFactors: install.MatchedFactors, DeepLinkData: deepLinkData,
	})
}

// GetAttribution handles GET /api/sdk/v1/attribution/{fingerprint_hex}.
func (h *SDKHandler) GetAttribution(c *fiber.Ctx) error {
	hash := c.Params("fingerprint")
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fingerprint is required"})
	}

	install, err := h.attribution.GetAttribution(requestCtx(c), hash)
	if err != nil {
		if errors.Is(err, store.ErrInstallNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no attribution found"})
		}
		h.logger.Error("get attribution failed", zap.Error(err), zap.String("fingerprint", hash))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	score := 0
	if install.ConfidenceScore != nil {
		score = *install.ConfidenceScore
	}
	deepLinkData := install.DeepLinkPayload
	if deepLinkData == nil {
		deepLinkData = map[string]any{}
	}

	return c.JSON(installResponse{
		InstallID: install.ID, Attributed: install.Attributed(), ConfidenceScore: score,
		MatchedFactors: install.MatchedFactors, DeepLinkData: deepLinkData,
	})
}

type trackEventRequest struct {
	InstallID  string         `json:"install_id"`
	EventName  string         `json:"event_name"`
	Properties map[string]any `json:"properties"`
}

// TrackEvent handles POST /api/sdk/v1/event.
func (h *SDKHandler) TrackEvent(c *fiber.Ctx) error {
	var req trackEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.InstallID == "" || req.EventName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "install_id and event_name are required"})
	}

	evt, err := h.attribution.RecordInAppEvent(requestCtx(c), req.InstallID, req.EventName, req.Properties)
	if err != nil {
		if errors.Is(err, store.ErrInstallNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "install not found"})
		}
		h.logger.Error("track event failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"id": evt.ID, "install_id": evt.InstallID, "event_name": evt.EventName, "occurred_at": evt.OccurredAt,
	})
}

// Resolve handles GET /api/sdk/v1/resolve/{code}.
func (h *SDKHandler) Resolve(c *fiber.Ctx) error {
	return h.resolveSDK(c, c.Params("code"), "")
}

// ResolveTemplate handles GET /api/sdk/v1/resolve/{slug}/{code}.
func (h *SDKHandler) ResolveTemplate(c *fiber.Ctx) error {
	return h.resolveSDK(c, c.Params("code"), c.Params("slug"))
}

func (h *SDKHandler) resolveSDK(c *fiber.Ctx, code, slug string) error {
	if code == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	req := resolver.Request{
		Code: code, TemplateSlug: slug,
		UserAgent: c.Get("User-Agent"), AcceptLang: c.Get("Accept-Language"),
		Referer: c.Get("Referer"), RemoteIP: c.IP(),
	}

	decision, err := h.resolver.ResolveSDK(requestCtx(c), req)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		h.logger.Error("sdk resolve failed", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	if h.recorder != nil {
		h.recorder.RecordAsync(decision)
	}
	metrics.ClicksTotal.WithLabelValues(string(decision.Reason)).Inc()

	return c.JSON(fiber.Map{
		"link_id":          decision.Link.ID,
		"short_code":       decision.Link.ShortCode,
		"url":              decision.URL,
		"reason":           decision.Reason,
		"deep_link_path":   decision.Link.DeepLinkPath,
		"deep_link_params": decision.Link.DeepLinkParams,
	})
}

// TestWebhook handles POST /api/webhooks/{id}/test — synchronous
// single-attempt delivery, external-CRUD-adjacent but core-hosted because
// it shares the Dispatcher's signing/attempt logic.
func (h *SDKHandler) TestWebhook(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id is required"})
	}

	wh, err := h.webhooks.GetByID(requestCtx(c), id)
	if err != nil {
		if errors.Is(err, store.ErrWebhookNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "webhook not found"})
		}
		h.logger.Error("load webhook for test failed", zap.Error(err), zap.String("webhook_id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	payload := fiber.Map{"test": true, "webhook_id": wh.ID}
	entry, deliverErr := h.dispatcher.Test(requestCtx(c), *wh, domain.EventClick, payload)
	if entry == nil {
		h.logger.Error("test webhook delivery failed to produce a log entry", zap.Error(deliverErr))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"success":         entry.Success,
		"response_status": entry.ResponseStatus,
		"response_body":   entry.ResponseBody,
		"error":           entry.Error,
	})
}

func requestCtx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func boolLabel(b bool) string {
	if b {
		return "attributed"
	}
	return "organic"
}
