package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldops/patrol-sync/internal/agent"
	"github.com/fieldops/patrol-sync/internal/config"
	"github.com/fieldops/patrol-sync/internal/connectivity"
	"github.com/fieldops/patrol-sync/internal/service"
	"github.com/fieldops/patrol-sync/internal/store/sqlite"
	"github.com/fieldops/patrol-sync/internal/uploader"
	"github.com/fieldops/patrol-sync/pkg/infra"
	"github.com/fieldops/patrol-sync/pkg/metrics"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	if cfg.DeviceUserID == "" {
		logger.Error("FATAL: DEVICE_USER_ID is required, uploads carry the session identity")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := sqlite.Open(ctx, cfg.QueuePath)
	if err != nil {
		logger.Error("FATAL: Failed to open local report queue", "path", cfg.QueuePath, "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	if n, err := queue.Count(ctx); err == nil {
		metrics.QueueBacklog.Set(float64(n))
		if n > 0 {
			logger.Info("Reports left over from a prior session", "count", n)
		}
	}

	monitor := connectivity.NewMonitor(cfg.ProbeURL, cfg.ProbeInterval, logger)
	client := uploader.NewClient(cfg.IngestURL, cfg.UploadTimeout, logger)
	engine := service.NewEngine(queue, client, monitor, service.StaticIdentity(cfg.DeviceUserID), logger)

	api := agent.NewServer(queue, engine, monitor, logger)
	srv := &http.Server{Addr: cfg.AgentAddr, Handler: api.Handler()}

	go func() {
		logger.Info("Capture API listening", "addr", cfg.AgentAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Capture API failed", "error", err)
			stop()
		}
	}()

	go monitor.Run(ctx)

	logger.Info("🚀 Patrol sync agent started", "pid", os.Getpid(), "user", cfg.DeviceUserID)

	// Blocks until shutdown: one startup drain for leftover work, then one
	// drain per online edge.
	engine.Run(ctx, monitor.Online())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("✅ Agent shut down")
}
