// Package ingest implements the server-side report ingestion endpoint: one
// multipart submission per call, durably stored, optionally announced on the
// event broker.
package ingest

import (
	"context"
	"sync"
	"time"
)

// ReportRecord is a report as accepted by the server. ReceivedAt is the
// server-side creation time; CapturedAt stays the device's capture time and
// the two are stored separately.
type ReportRecord struct {
	ID               string
	UserID           string
	UnitID           string
	CategoryID       string
	LocationID       string
	Image            []byte
	ImageName        string
	Notes            string
	Latitude         float64
	Longitude        float64
	CapturedAt       time.Time
	SubmittedOffline bool
	ReceivedAt       time.Time
}

// Sink durably stores accepted reports.
type Sink interface {
	Save(ctx context.Context, rec ReportRecord) error
}

// MemorySink keeps accepted reports in memory. Test use only.
type MemorySink struct {
	mu      sync.Mutex
	records []ReportRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Save(_ context.Context, rec ReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything saved so far.
func (m *MemorySink) Records() []ReportRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReportRecord, len(m.records))
	copy(out, m.records)
	return out
}
