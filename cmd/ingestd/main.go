package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldops/patrol-sync/internal/config"
	"github.com/fieldops/patrol-sync/internal/ingest"
	"github.com/fieldops/patrol-sync/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := ingest.NewPostgresSink(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("FATAL: Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	// Events are optional: without a broker URL the endpoint just stores
	// reports.
	var publisher ingest.Publisher
	if cfg.RabbitMQURL != "" {
		p := &brokerPublisher{}
		go maintainBroker(ctx, cfg.RabbitMQURL, p, logger)
		publisher = p
	}

	handler := ingest.NewHandler(sink, publisher, int64(cfg.MaxImageMB)<<20, logger)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.IngestAddr, Handler: mux}

	go func() {
		logger.Info("🚀 Report ingestion endpoint listening", "addr", cfg.IngestAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ingestion endpoint failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("✅ Ingestion endpoint shut down")
}

// brokerPublisher hands requests the current healthy notifier, if any. The
// request path never dials the broker itself.
type brokerPublisher struct {
	current atomic.Pointer[ingest.Notifier]
}

func (p *brokerPublisher) ReportAccepted(ctx context.Context, ev ingest.ReportEvent) error {
	n := p.current.Load()
	if n == nil {
		return errors.New("broker link not established")
	}
	return n.ReportAccepted(ctx, ev)
}

// maintainBroker keeps the notifier connected, reconnecting with backoff when
// the link drops.
func maintainBroker(ctx context.Context, url string, p *brokerPublisher, logger *slog.Logger) {
	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		if ctx.Err() != nil {
			if n := p.current.Load(); n != nil {
				n.Close()
			}
			return
		}

		cur := p.current.Load()
		if cur == nil || !cur.IsHealthy() {
			if cur != nil {
				cur.Close()
			}

			n, err := ingest.NewNotifier(url, logger)
			if err != nil {
				wait := backoff.Next()
				logger.Error("RabbitMQ link failure, retrying", "wait", wait, "error", err)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
				}
				continue
			}

			logger.Info("RabbitMQ link established")
			p.current.Store(n)
			backoff.Reset()
		}

		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
	}
}
