// eventtail follows accepted-report events from the broker and logs them.
// Handy for watching field submissions land during an incident.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldops/patrol-sync/internal/config"
	"github.com/fieldops/patrol-sync/internal/ingest"
	"github.com/fieldops/patrol-sync/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	if cfg.RabbitMQURL == "" {
		logger.Error("FATAL: RABBITMQ_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := func(_ context.Context, ev ingest.ReportEvent) error {
		logger.Info("Report accepted",
			"report_id", ev.ReportID,
			"unit_id", ev.UnitID,
			"category_id", ev.CategoryID,
			"location_id", ev.LocationID,
			"user_id", ev.UserID,
			"captured_at", ev.CapturedAt,
			"offline", ev.SubmittedOffline,
		)
		return nil
	}

	consumer, err := ingest.NewEventConsumer(cfg.RabbitMQURL, "patrol.reports.tail", "patrol.unit.#", handler, logger)
	if err != nil {
		logger.Error("FATAL: Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	logger.Info("🚀 Tailing accepted-report events")

	if err := consumer.Listen(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped unexpectedly", "error", err)
		os.Exit(1)
	}

	logger.Info("✅ Event tail shut down")
}
