// Package sqlite persists the report queue in a single on-device SQLite file
// so queued captures survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fieldops/patrol-sync/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS queued_reports (
	id             TEXT PRIMARY KEY,
	submitter_id   TEXT NOT NULL,
	unit_id        TEXT NOT NULL,
	category_id    TEXT NOT NULL,
	location_id    TEXT NOT NULL,
	image_data     TEXT NOT NULL,
	notes          TEXT NOT NULL DEFAULT '',
	latitude       REAL NOT NULL,
	longitude      REAL NOT NULL,
	captured_at_ms INTEGER NOT NULL,
	created_at_ms  INTEGER NOT NULL
);
`

// Store implements store.ReportQueue on a local SQLite database. Queue sizes
// are tens of records at most, so full scans need no index beyond the primary
// key.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the queue database at path. WAL and a busy
// timeout keep the capture surface and the sync engine from tripping over each
// other; a single connection sidesteps SQLITE_BUSY entirely.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping queue db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure queue schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Enqueue(ctx context.Context, in models.QueuedReportInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	id := uuid.NewString()
	createdAt := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO queued_reports(
	id, submitter_id, unit_id, category_id, location_id,
	image_data, notes, latitude, longitude, captured_at_ms, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		id, in.SubmitterID, in.UnitID, in.CategoryID, in.LocationID,
		in.ImageData, in.Notes, in.Latitude, in.Longitude,
		in.CapturedAt.UTC().UnixMilli(), createdAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue insert: %w", err)
	}
	return id, nil
}

func (s *Store) ListAll(ctx context.Context) ([]models.QueuedReport, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, submitter_id, unit_id, category_id, location_id,
       image_data, notes, latitude, longitude, captured_at_ms, created_at_ms
FROM queued_reports
ORDER BY created_at_ms ASC, id ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("list queued reports: %w", err)
	}
	defer rows.Close()

	var reports []models.QueuedReport
	for rows.Next() {
		var r models.QueuedReport
		var capturedMs, createdMs int64
		if err := rows.Scan(
			&r.ID, &r.SubmitterID, &r.UnitID, &r.CategoryID, &r.LocationID,
			&r.ImageData, &r.Notes, &r.Latitude, &r.Longitude, &capturedMs, &createdMs,
		); err != nil {
			return nil, fmt.Errorf("scan queued report: %w", err)
		}
		r.CapturedAt = time.UnixMilli(capturedMs).UTC()
		r.CreatedAt = time.UnixMilli(createdMs).UTC()
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queued reports: %w", err)
	}
	return reports, nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queued_reports WHERE id = ?;`, id); err != nil {
		return fmt.Errorf("delete queued report: %w", err)
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queued_reports;`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queued_reports;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
