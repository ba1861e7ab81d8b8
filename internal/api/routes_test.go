package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/STWuRCA-diy/winder/internal/controller"
	"github.com/STWuRCA-diy/winder/internal/hal"
	"github.com/STWuRCA-diy/winder/internal/metrics"
	"github.com/STWuRCA-diy/winder/internal/motion"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *controller.Controller) {
	t.Helper()
	gpio := hal.NewMockGPIO()
	gpio.SetInputLevel(hal.PinYLimit, true)
	cfg := motion.DefaultConfig()
	cfg.XStepsPerRev = 20
	cfg.RPM = 3000
	e, err := motion.New(gpio, cfg, nil)
	require.NoError(t, err)
	e.Start()
	t.Cleanup(func() { e.Stop(time.Second) })

	ctrl := controller.New(e, nil)
	h := NewHandler(ctrl, metrics.New())

	app := fiber.New()
	SetupRoutes(app, h, true)
	return app, ctrl
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	require.Equal(t, fiber.StatusOK, doJSON(t, app, "GET", "/api/v1/health", nil))
}

func TestStartThenStatusReturnsOK(t *testing.T) {
	app, _ := newTestApp(t)

	require.Equal(t, fiber.StatusOK, doJSON(t, app, "POST", "/api/v1/winder/start", startRequest{Total: 2}))
	require.Equal(t, fiber.StatusOK, doJSON(t, app, "GET", "/api/v1/winder/status", nil))
}

func TestStartRejectsZeroTotal(t *testing.T) {
	app, _ := newTestApp(t)
	require.Equal(t, fiber.StatusBadRequest, doJSON(t, app, "POST", "/api/v1/winder/start", startRequest{Total: 0}))
}

func TestConfigRejectsNonPositivePitch(t *testing.T) {
	app, _ := newTestApp(t)
	bad := -1.0
	require.Equal(t, fiber.StatusBadRequest, doJSON(t, app, "POST", "/api/v1/winder/config", configRequest{Pitch: &bad}))
}

func TestMetricsEndpointReturnsOK(t *testing.T) {
	app, _ := newTestApp(t)
	require.Equal(t, fiber.StatusOK, doJSON(t, app, "GET", "/api/v1/winder/metrics", nil))
}
