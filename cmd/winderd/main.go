// Command winderd is the real-time control daemon for a two-axis
// coil-winding machine: it paces stepper pulses on X and Y, tracks
// turns and layer position, and exposes the Controller over HTTP.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/STWuRCA-diy/winder/internal/api"
	"github.com/STWuRCA-diy/winder/internal/config"
	"github.com/STWuRCA-diy/winder/internal/controller"
	"github.com/STWuRCA-diy/winder/internal/encoder"
	"github.com/STWuRCA-diy/winder/internal/logger"
	"github.com/STWuRCA-diy/winder/internal/metrics"
	"github.com/STWuRCA-diy/winder/internal/motion"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "winderd: load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		LogDir:     cfg.Logger.Dir,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "winderd: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("winderd starting", "version", Version)

	h := initHAL(cfg.Motion.UseMockHAL)
	defer func() {
		if err := h.Close(); err != nil {
			logger.Warn("error closing HAL", "error", err)
		}
	}()
	gpio := h.GPIO()

	motionCfg := motion.Config{
		XStepsPerRev:  cfg.Motion.XStepsPerRev,
		XDirSign:      1,
		YStepsPerMM:   cfg.Motion.YStepsPerMM,
		PitchMM:       cfg.Motion.PitchMM,
		BobbinWidthMM: cfg.Motion.BobbinWidthMM,
		RPM:           cfg.Motion.RPM,
	}

	var enc *encoder.Monitor
	var resetEncoder func()
	if cfg.Motion.EncoderEnable {
		enc, err = encoder.NewMonitor(gpio)
		if err != nil {
			logger.Warn("encoder disabled: failed to initialize monitor", "error", err)
			enc = nil
		} else {
			resetEncoder = enc.Reset
		}
	}

	engine, err := motion.New(gpio, motionCfg, resetEncoder)
	if err != nil {
		logger.Fatal("failed to initialize motion engine", "error", err)
	}
	engine.Start()
	defer engine.Stop(2 * time.Second)

	ctrl := controller.New(engine, enc)
	m := metrics.New()

	app := fiber.New(fiber.Config{AppName: "winderd v" + Version})
	app.Use(recover.New())
	app.Use(metrics.Middleware(m))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	api.SetupRoutes(app, api.NewHandler(ctrl, m), cfg.Metrics.Enabled)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	go func() {
		logger.Info("HTTP API listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("HTTP server stopped", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("winderd shutting down")
	_ = app.Shutdown()
}
