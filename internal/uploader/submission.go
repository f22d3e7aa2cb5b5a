// Package uploader reconstructs queued reports into multipart submissions and
// delivers them to the ingestion endpoint.
package uploader

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/patrol-sync/internal/models"
)

// BuildSubmission converts a queued report into wire form: the stored base64
// blob becomes binary image bytes again, and the live session identity
// replaces the advisory stored submitter. Pure — no network, no storage.
func BuildSubmission(rep models.QueuedReport, userID string) (models.Submission, error) {
	data := rep.ImageData
	// Browser capture surfaces tend to hand over data URLs; keep only the
	// payload.
	if i := strings.Index(data, ";base64,"); i >= 0 {
		data = data[i+len(";base64,"):]
	}

	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return models.Submission{}, fmt.Errorf("decode image for report %s: %w", rep.ID, err)
	}
	if len(img) == 0 {
		return models.Submission{}, fmt.Errorf("report %s has an empty image", rep.ID)
	}

	return models.Submission{
		ReportID:         rep.ID,
		UserID:           userID,
		UnitID:           rep.UnitID,
		CategoryID:       rep.CategoryID,
		LocationID:       rep.LocationID,
		Image:            img,
		ImageName:        rep.ID + ".jpg",
		Notes:            rep.Notes,
		Latitude:         rep.Latitude,
		Longitude:        rep.Longitude,
		CapturedAt:       rep.CapturedAt,
		SubmittedOffline: true,
	}, nil
}

// encodeMultipart renders a submission as a multipart/form-data body matching
// the ingestion endpoint's field contract.
func encodeMultipart(sub models.Submission) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", sub.ImageName)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(sub.Image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	fields := map[string]string{
		"notes":            sub.Notes,
		"latitude":         strconv.FormatFloat(sub.Latitude, 'f', -1, 64),
		"longitude":        strconv.FormatFloat(sub.Longitude, 'f', -1, 64),
		"unitId":           sub.UnitID,
		"userId":           sub.UserID,
		"categoryId":       sub.CategoryID,
		"locationId":       sub.LocationID,
		"capturedAt":       sub.CapturedAt.UTC().Format(time.RFC3339),
		"submittedOffline": strconv.FormatBool(sub.SubmittedOffline),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
