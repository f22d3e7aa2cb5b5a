// Package store defines the access layer over the durable local report queue.
package store

import (
	"context"

	"github.com/fieldops/patrol-sync/internal/models"
)

// ReportQueue is the contract for queued report persistence. All operations
// are local I/O; failures are environment failures (store unavailable, quota
// exceeded) and surface to the caller instead of being retried internally.
type ReportQueue interface {
	// Enqueue generates a new id, stamps the enqueue time and stores the
	// record. A storage failure here means the capture is lost, so the error
	// must reach the user.
	Enqueue(ctx context.Context, in models.QueuedReportInput) (string, error)

	// ListAll returns every queued record in insertion order.
	ListAll(ctx context.Context) ([]models.QueuedReport, error)

	// DeleteByID removes exactly one record. Deleting an id that is already
	// gone is not an error.
	DeleteByID(ctx context.Context, id string) error

	// ClearAll removes every record. Reserved for explicit user-initiated
	// reset; the sync engine never calls it.
	ClearAll(ctx context.Context) error

	// Count reports the current backlog, for the queued-work indicator.
	Count(ctx context.Context) (int, error)
}
