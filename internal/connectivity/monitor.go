// Package connectivity tracks whether the ingestion endpoint is reachable
// from the device and surfaces offline→online transitions as discrete events.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fieldops/patrol-sync/pkg/metrics"
)

// Monitor probes a health URL on a fixed interval. IsOnline answers the level
// question ("is the endpoint reachable right now"); Online delivers the edge
// ("it just became reachable"). Consumers that drain work must react to the
// edge, not the level, or they would start redundant drains on every check.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	online atomic.Bool
	edges  chan struct{}
}

func NewMonitor(probeURL string, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		// Buffered by one so edges coalesce: rapid flapping while a drain is
		// in flight collapses into a single pending trigger.
		edges: make(chan struct{}, 1),
	}
}

// IsOnline reports the current connectivity level.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Online delivers one value per offline→online transition.
func (m *Monitor) Online() <-chan struct{} {
	return m.edges
}

// Run probes until ctx is cancelled. The first probe fires immediately so the
// state is settled before anyone asks.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.setState(m.probe(ctx))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Connectivity monitor stopping")
			return
		case <-ticker.C:
			m.setState(m.probe(ctx))
		}
	}
}

// probe treats any 2xx from the health URL as online; transport errors and
// every other status count as offline.
func (m *Monitor) probe(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (m *Monitor) setState(online bool) {
	was := m.online.Swap(online)

	if online {
		metrics.OnlineStatus.Set(1)
	} else {
		metrics.OnlineStatus.Set(0)
	}

	switch {
	case online && !was:
		m.logger.Info("Connectivity restored", "probe_url", m.probeURL)
		select {
		case m.edges <- struct{}{}:
		default: // an edge is already pending
		}
	case !online && was:
		m.logger.Warn("Connectivity lost", "probe_url", m.probeURL)
	}
}
