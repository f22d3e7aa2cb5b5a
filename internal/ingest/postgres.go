package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const reportsSchema = `
CREATE TABLE IF NOT EXISTS patrol_reports (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	unit_id           TEXT NOT NULL,
	category_id       TEXT NOT NULL,
	location_id       TEXT NOT NULL,
	image             BYTEA NOT NULL,
	image_name        TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	latitude          DOUBLE PRECISION NOT NULL,
	longitude         DOUBLE PRECISION NOT NULL,
	captured_at       TIMESTAMPTZ NOT NULL,
	submitted_offline BOOLEAN NOT NULL DEFAULT FALSE,
	received_at       TIMESTAMPTZ NOT NULL
);
`

// PostgresSink stores accepted reports in Postgres.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, connString string) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, reportsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure reports schema: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Save(ctx context.Context, rec ReportRecord) error {
	query := `
		INSERT INTO patrol_reports (
			id, user_id, unit_id, category_id, location_id,
			image, image_name, notes, latitude, longitude,
			captured_at, submitted_offline, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.UnitID, rec.CategoryID, rec.LocationID,
		rec.Image, rec.ImageName, rec.Notes, rec.Latitude, rec.Longitude,
		rec.CapturedAt, rec.SubmittedOffline, rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresSink) Close() {
	s.pool.Close()
}
