package models

import "time"

// Submission is the wire form of one report delivery: the decoded image plus
// the fields the ingestion endpoint expects in its multipart contract.
type Submission struct {
	ReportID         string
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
}
