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

	natsadapter "github.com/georisk/georisk/internal/adapters/nats"
	"github.com/georisk/georisk/internal/adapters/postgres"
	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/usecases"
	"github.com/georisk/georisk/internal/pkg/config"
	"github.com/georisk/georisk/internal/pkg/logging"
	"github.com/georisk/georisk/internal/pkg/metrics"
	"github.com/georisk/georisk/internal/pkg/telemetry"
)

const summaryInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load("georisk-auditor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	audit := usecases.NewAuditService(postgres.NewAssessmentRepo(db))

	// NATS
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "assessment-auditor")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	if err := sub.SubscribeAssessments(ctx, func(ctx context.Context, a *domain.Assessment) error {
		if err := audit.Record(ctx, a); err != nil {
			slog.Warn("assessment not recorded", "id", a.ID, "error", err)
			return err
		}
		slog.Debug("assessment recorded", "id", a.ID, "session_id", a.SessionID, "outcome", a.Outcome)
		return nil
	}); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	// Metrics endpoint
	app := fiber.New(fiber.Config{DisableStartupMessage: true, AppName: "GeoRisk Auditor"})
	app.Get("/metrics", metrics.Handler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			slog.Error("metrics listener stopped", "error", err)
		}
	}()

	go summarize(ctx, audit)

	slog.Info("auditor started", "stream", natsadapter.AssessmentStream)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down auditor...")
	cancel()
	_ = app.Shutdown()
}

// summarize logs the per-outcome totals of the last interval.
func summarize(ctx context.Context, audit *usecases.AuditService) {
	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			counts, err := audit.Summary(ctx, now.Add(-summaryInterval))
			if err != nil {
				slog.Warn("assessment summary failed", "error", err)
				continue
			}
			slog.Info("assessment summary",
				"window", summaryInterval.String(),
				"success", counts[domain.OutcomeSuccess],
				"failed", counts[domain.OutcomeFailed])
		}
	}
}
