// Package service contains the sync engine that drains the durable report
// queue to the ingestion endpoint.
package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fieldops/patrol-sync/internal/models"
	"github.com/fieldops/patrol-sync/pkg/metrics"
)

// A drain snapshot larger than this holds enough base64 imagery to matter on
// a low-end field device.
const heavySnapshotThresholdMB = 20

// Queue is the slice of the queue access layer the engine needs. The engine
// reads and deletes; it never enqueues and never clears.
type Queue interface {
	ListAll(ctx context.Context) ([]models.QueuedReport, error)
	DeleteByID(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Uploader delivers a single report to the ingestion endpoint.
type Uploader interface {
	Submit(ctx context.Context, rep models.QueuedReport, userID string) error
}

// Connectivity answers the level question only; edge events are the caller's
// concern.
type Connectivity interface {
	IsOnline() bool
}

// IdentityProvider supplies the currently authenticated user. The session
// identity is attached to every upload; the submitter stored with the record
// is advisory.
type IdentityProvider interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// StaticIdentity is an IdentityProvider for devices bound to a single user.
type StaticIdentity string

func (s StaticIdentity) CurrentUserID(context.Context) (string, error) {
	return string(s), nil
}

// Engine drains the queue with at-most-one concurrent drain and per-record
// isolation: one report's failure never aborts the rest of the snapshot.
type Engine struct {
	queue    Queue
	uploader Uploader
	conn     Connectivity
	identity IdentityProvider
	logger   *slog.Logger

	// draining is the engine's entire state machine: false is Idle, true is
	// Draining. It is set before any I/O begins and cleared only after the
	// full snapshot has been attempted.
	draining atomic.Bool
}

func NewEngine(q Queue, u Uploader, c Connectivity, id IdentityProvider, l *slog.Logger) *Engine {
	return &Engine{
		queue:    q,
		uploader: u,
		conn:     c,
		identity: id,
		logger:   l,
	}
}

// IsSyncing reports whether a drain cycle is currently in flight.
func (e *Engine) IsSyncing() bool {
	return e.draining.Load()
}

// Trigger runs one drain cycle. Startup, online edges and post-capture nudges
// all land here. A trigger received while a drain is in flight is a no-op and
// returns false; that guard is what guarantees at most one concurrent drain
// even under rapid online/offline flapping.
func (e *Engine) Trigger(ctx context.Context) bool {
	if !e.draining.CompareAndSwap(false, true) {
		metrics.DrainTriggers.WithLabelValues("skipped").Inc()
		return false
	}
	defer e.draining.Store(false)

	metrics.DrainTriggers.WithLabelValues("started").Inc()
	e.drain(ctx)
	return true
}

// Run triggers once at startup to catch work left over from a prior session,
// then once per online edge, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, online <-chan struct{}) {
	e.Trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Sync engine stopping")
			return
		case <-online:
			e.Trigger(ctx)
		}
	}
}

func (e *Engine) drain(ctx context.Context) {
	if !e.conn.IsOnline() {
		e.logger.Debug("Drain skipped: device is offline")
		return
	}

	start := time.Now()

	// Work on a snapshot rather than a live cursor: reports enqueued
	// mid-drain wait for the next trigger, and no lock is held over the
	// store during network I/O.
	snapshot, err := e.queue.ListAll(ctx)
	if err != nil {
		e.logger.Error("Drain aborted: cannot read queue", "error", err)
		return
	}
	if len(snapshot) == 0 {
		return
	}

	metrics.DrainSnapshotSize.Observe(float64(len(snapshot)))

	var delivered, failed int
	defer func() {
		metrics.DrainDuration.Observe(time.Since(start).Seconds())
		e.refreshBacklog(ctx)
		e.logger.Info("Drain cycle finished",
			"snapshot", len(snapshot),
			"delivered", delivered,
			"failed", failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	var snapshotBytes int
	for _, rep := range snapshot {
		snapshotBytes += rep.EstimateBytes()
	}
	if mb := snapshotBytes / (1024 * 1024); mb > heavySnapshotThresholdMB {
		e.logger.Warn("Heavy drain snapshot: memory pressure risk",
			"size_mb", mb,
			"threshold_mb", heavySnapshotThresholdMB,
			"count", len(snapshot),
		)
	}

	userID, err := e.identity.CurrentUserID(ctx)
	if err != nil {
		e.logger.Error("Drain aborted: no authenticated identity, reports stay queued", "error", err)
		failed = len(snapshot)
		return
	}

	for _, rep := range snapshot {
		select {
		case <-ctx.Done():
			e.logger.Warn("Drain interrupted by shutdown, remaining reports stay queued",
				"remaining", len(snapshot)-delivered-failed)
			return
		default:
		}

		l := e.logger.With("report_id", rep.ID)

		if rep.SubmitterID != userID {
			l.Warn("Stored submitter differs from session identity, session wins",
				"stored", rep.SubmitterID,
				"session", userID,
			)
		}

		if err := e.uploader.Submit(ctx, rep, userID); err != nil {
			// Recoverable: the record stays queued untouched and every
			// subsequent online edge retries it.
			l.Warn("Delivery failed, report stays queued", "error", err)
			metrics.ReportsDelivered.WithLabelValues("error").Inc()
			failed++
			continue
		}

		// Delete-after-success is the sole "delivered" signal. If the delete
		// fails the server already has the report and the next cycle will
		// submit it again: a duplicate beats a lost incident report.
		if err := e.queue.DeleteByID(ctx, rep.ID); err != nil {
			l.Error("Report delivered but could not be removed from queue, it will be re-submitted", "error", err)
			metrics.ReportsDelivered.WithLabelValues("redelivery_risk").Inc()
			failed++
			continue
		}

		metrics.ReportsDelivered.WithLabelValues("delivered").Inc()
		l.Info("Report delivered")
		delivered++
	}
}

func (e *Engine) refreshBacklog(ctx context.Context) {
	if n, err := e.queue.Count(ctx); err == nil {
		metrics.QueueBacklog.Set(float64(n))
	}
}
