// Package memory is an in-process ReportQueue used by tests and doubles.
// It mirrors the SQLite store's semantics, including insertion-order listing
// and idempotent deletes.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/patrol-sync/internal/models"
)

type Store struct {
	mu      sync.Mutex
	order   []string
	reports map[string]models.QueuedReport
}

func New() *Store {
	return &Store{reports: make(map[string]models.QueuedReport)}
}

func (s *Store) Enqueue(_ context.Context, in models.QueuedReportInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.reports[id] = models.QueuedReport{
		ID:          id,
		SubmitterID: in.SubmitterID,
		UnitID:      in.UnitID,
		CategoryID:  in.CategoryID,
		LocationID:  in.LocationID,
		ImageData:   in.ImageData,
		Notes:       in.Notes,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CapturedAt:  in.CapturedAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *Store) ListAll(_ context.Context) ([]models.QueuedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := make([]models.QueuedReport, 0, len(s.reports))
	for _, id := range s.order {
		if r, ok := s.reports[id]; ok {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

func (s *Store) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, id)
	return nil
}

func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = make(map[string]models.QueuedReport)
	s.order = nil
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports), nil
}
