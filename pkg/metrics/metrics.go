package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueBacklog tracks the number of captured reports still waiting for
	// delivery. This is the user-facing "undelivered work" indicator.
	QueueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_queue_backlog",
		Help: "Current number of queued, not-yet-delivered reports",
	})

	// ReportsDelivered tracks per-record drain outcomes.
	// status: delivered, error, redelivery_risk (server accepted but the
	// local delete failed, so the record will be submitted again)
	ReportsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_reports_delivered_total",
		Help: "Total number of report delivery attempts by outcome",
	}, []string{"status"})

	// DrainDuration measures how long one full drain cycle takes
	DrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_drain_duration_seconds",
		Help:    "Duration of queue drain cycles in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DrainSnapshotSize tracks how many reports each drain cycle picked up
	DrainSnapshotSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_drain_snapshot_size",
		Help:    "Number of queued reports per drain cycle",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	// DrainTriggers counts trigger dispositions. A skipped trigger means a
	// drain was already in flight.
	DrainTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_drain_triggers_total",
		Help: "Total number of drain triggers by disposition (started/skipped)",
	}, []string{"result"})

	// OnlineStatus provides a binary 0/1 signal for device connectivity
	// 1 = the ingestion endpoint is reachable, 0 = offline
	OnlineStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_online",
		Help: "Current connectivity status (1 for online, 0 for offline)",
	})
)
