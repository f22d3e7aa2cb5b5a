package models

import (
	"errors"
	"time"
)

// QueuedReportInput is what the capture surface hands to the queue: every
// field of a report except the locally generated id and the enqueue timestamp.
type QueuedReportInput struct {
	SubmitterID string
	UnitID      string
	CategoryID  string
	LocationID  string
	ImageData   string // base64-encoded photo; kept inline because a file path would dangle across restarts
	Notes       string
	Latitude    float64
	Longitude   float64
	CapturedAt  time.Time
}

// Validate rejects inputs that would be undeliverable. Notes are the only
// optional field.
func (in QueuedReportInput) Validate() error {
	switch {
	case in.SubmitterID == "":
		return errors.New("submitter id is required")
	case in.UnitID == "":
		return errors.New("unit id is required")
	case in.CategoryID == "":
		return errors.New("category id is required")
	case in.LocationID == "":
		return errors.New("location id is required")
	case in.ImageData == "":
		return errors.New("image data is required")
	case in.Latitude == 0 && in.Longitude == 0:
		return errors.New("geolocation is required")
	case in.CapturedAt.IsZero():
		return errors.New("capture timestamp is required")
	}
	return nil
}

// QueuedReport is a locally persisted, not-yet-delivered incident report.
// It lives in the durable queue from the moment capture completes until the
// server confirms receipt; it is created and deleted, never updated in place.
type QueuedReport struct {
	ID          string
	SubmitterID string
	UnitID      string
	CategoryID  string
	LocationID  string
	ImageData   string
	Notes       string
	Latitude    float64
	Longitude   float64
	// CapturedAt is fixed at capture time and is the authoritative "when it
	// happened". CreatedAt is the enqueue time, used only for local ordering.
	CapturedAt time.Time
	CreatedAt  time.Time
}

// EstimateBytes approximates the in-memory footprint of a queued report.
// The base64 image dominates; the rest is a rounding error.
func (r QueuedReport) EstimateBytes() int {
	return len(r.ImageData) + len(r.Notes) + 256
}
