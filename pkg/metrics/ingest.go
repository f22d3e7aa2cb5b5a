package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestReceived tracks the throughput and result of report ingestion
	// status: accepted, invalid, storage_error
	IngestReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_reports_received_total",
		Help: "Total number of report submissions handled by the ingestion endpoint",
	}, []string{"status"})

	// IngestDuration measures end-to-end handling time of one submission,
	// multipart parse through datastore commit
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_request_duration_seconds",
		Help:    "Duration of report ingestion requests in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// EventsPublished tracks accepted-report events pushed to the broker
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_events_published_total",
		Help: "Total number of accepted-report events published to the broker",
	}, []string{"status"})

	// BrokerHealth provides a binary 0/1 signal for the event broker link
	BrokerHealth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_broker_healthy",
		Help: "Current health of the broker connection (1 for healthy, 0 for down)",
	})
)
