// Package api exposes the Controller over HTTP using fiber, the shape
// of winder_server_rpi.py's /api/status, /api/command, /api/start,
// /api/rpm, /api/pitch, /api/bwidth endpoints, re-expressed with the
// teacher's fiber route-group idiom (spec.md §6, SPEC_FULL.md "EXTERNAL
// INTERFACES").
package api

import (
	"github.com/STWuRCA-diy/winder/internal/controller"
	"github.com/STWuRCA-diy/winder/internal/metrics"
	"github.com/gofiber/fiber/v2"
)

// Handler binds the Controller and Metrics into fiber route closures.
type Handler struct {
	ctrl    *controller.Controller
	metrics *metrics.Metrics
}

// NewHandler constructs a Handler.
func NewHandler(ctrl *controller.Controller, m *metrics.Metrics) *Handler {
	return &Handler{ctrl: ctrl, metrics: m}
}

// SetupRoutes registers winderd's HTTP API under /api/v1. The /metrics
// route is only mounted when metricsEnabled is true (config.yaml's
// metrics.enabled).
func SetupRoutes(app *fiber.App, h *Handler, metricsEnabled bool) {
	v1 := app.Group("/api/v1")

	v1.Get("/health", h.health)

	winder := v1.Group("/winder")
	winder.Get("/status", h.status)
	winder.Post("/command", h.command)
	winder.Post("/start", h.start)
	winder.Post("/config", h.config)
	if metricsEnabled {
		winder.Get("/metrics", h.metrics_)
	}
}

func (h *Handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy", "service": "winderd"})
}

func (h *Handler) status(c *fiber.Ctx) error {
	return c.JSON(h.ctrl.Snapshot())
}

type commandRequest struct {
	Cmd string `json:"cmd"`
}

func (h *Handler) command(c *fiber.Ctx) error {
	var req commandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid body"})
	}

	switch req.Cmd {
	case "run":
		h.ctrl.Run()
	case "stop":
		h.ctrl.Stop()
	case "resume":
		h.ctrl.Resume()
	case "yzero":
		h.ctrl.YZero()
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "unknown command"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

type startRequest struct {
	Total    int  `json:"total"`
	Sections int  `json:"sections"`
	AutoNext bool `json:"auto_next"`
}

func (h *Handler) start(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid body"})
	}
	if err := h.ctrl.Start(req.Total, req.Sections, req.AutoNext); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	h.metrics.IncrementRuns()
	return c.JSON(fiber.Map{"ok": true})
}

type configRequest struct {
	RPM    *int     `json:"rpm"`
	Pitch  *float64 `json:"pitch"`
	BWidth *float64 `json:"bwidth"`
	XRev   *int     `json:"xrev"`
	YCal   *float64 `json:"ycal"`
}

func (h *Handler) config(c *fiber.Ctx) error {
	var req configRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid body"})
	}

	if req.RPM != nil {
		h.ctrl.SetRPM(*req.RPM)
	}
	if req.Pitch != nil {
		if err := h.ctrl.SetPitch(*req.Pitch); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
		}
	}
	if req.BWidth != nil {
		if err := h.ctrl.SetBobbinWidth(*req.BWidth); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
		}
	}
	if req.XRev != nil {
		h.ctrl.SetXRev(*req.XRev)
	}
	if req.YCal != nil {
		if err := h.ctrl.SetYCal(*req.YCal); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *Handler) metrics_(c *fiber.Ctx) error {
	h.metrics.UpdateSystemMetrics()
	c.Set("Content-Type", "text/plain; version=0.0.4")
	return c.SendString(h.metrics.PrometheusFormat())
}
