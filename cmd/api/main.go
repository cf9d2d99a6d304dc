package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/georisk/georisk/internal/adapters/http"
	natsadapter "github.com/georisk/georisk/internal/adapters/nats"
	"github.com/georisk/georisk/internal/adapters/riskapi"
	"github.com/georisk/georisk/internal/adapters/valkey"
	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/usecases"
	"github.com/georisk/georisk/internal/pkg/config"
	"github.com/georisk/georisk/internal/pkg/logging"
	"github.com/georisk/georisk/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("georisk-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Risk backend
	risk := riskapi.New(riskapi.Config{
		BaseURL:  cfg.Risk.BaseURL,
		Endpoint: cfg.Risk.Endpoint,
		Timeout:  cfg.Risk.Timeout(),
	}, riskapi.WithLogger(logger))
	if risk.Configured() {
		slog.Info("risk backend configured", "url", risk.URL())
	} else {
		slog.Error("risk backend address is not configured; every assessment will fail",
			"env", "GEORISK_RISK_BASE_URL")
	}

	deps := &http.Dependencies{
		Assessments: usecases.NewAssessmentService(risk, cfg.Session.MinRadius),
		Risk:        risk,
		Session:     sessionConfig(cfg),
		Version:     version,
	}

	// Valkey (shared rate limiter storage)
	if cfg.Valkey.Addr != "" {
		storage, err := valkey.New(cfg.Valkey.Addr, "georisk:limiter:")
		if err != nil {
			slog.Warn("valkey unavailable, rate limits are per instance", "error", err)
		} else {
			defer storage.Close()
			deps.Storage = storage
		}
	}

	// NATS (assessment events)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, assessment events disabled", "error", err)
	} else {
		defer pub.Close()
		deps.Publisher = pub
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "GeoRisk API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight assessments time to settle
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Risk.Timeout()+5*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func sessionConfig(cfg *config.Config) http.SessionConfig {
	s := http.DefaultSessionConfig()
	s.Coordinator = usecases.CoordinatorConfig{
		Debounce:      cfg.Session.Debounce(),
		DefaultRadius: cfg.Session.DefaultRadius,
		MinRadius:     cfg.Session.MinRadius,
		Zoom:          cfg.Session.Zoom,
	}
	s.Center = domain.GeoPoint{Lat: cfg.Session.CenterLat, Lng: cfg.Session.CenterLng}
	s.InitialZoom = cfg.Session.InitialZoom
	s.RiskTimeout = cfg.Risk.Timeout() + 5*time.Second
	s.PingInterval = cfg.Session.PingInterval()
	return s
}
