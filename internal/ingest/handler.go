package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/patrol-sync/pkg/encoding"
	"github.com/fieldops/patrol-sync/pkg/metrics"
)

// Publisher announces accepted reports downstream. Publishing is best effort;
// a broker outage must never fail an ingestion request.
type Publisher interface {
	ReportAccepted(ctx context.Context, ev ReportEvent) error
}

// ReportEvent is the broker payload for one accepted report. The image stays
// out of it; consumers that need it go to the datastore.
type ReportEvent struct {
	ReportID         string    `json:"report_id"`
	UserID           string    `json:"user_id"`
	UnitID           string    `json:"unit_id"`
	CategoryID       string    `json:"category_id"`
	LocationID       string    `json:"location_id"`
	CapturedAt       time.Time `json:"captured_at"`
	SubmittedOffline bool      `json:"submitted_offline"`
	ReceivedAt       time.Time `json:"received_at"`
}

// Handler accepts one report per request as multipart/form-data.
type Handler struct {
	sink          Sink
	publisher     Publisher // nil when events are disabled
	logger        *slog.Logger
	maxImageBytes int64
}

func NewHandler(sink Sink, publisher Publisher, maxImageBytes int64, logger *slog.Logger) *Handler {
	return &Handler{
		sink:          sink,
		publisher:     publisher,
		logger:        logger,
		maxImageBytes: maxImageBytes,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reports", h.handleSubmit)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	rec, err := h.parseSubmission(r)
	if err != nil {
		metrics.IngestReceived.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	l := h.logger.With("report_id", rec.ID, "unit_id", rec.UnitID)

	if err := h.sink.Save(r.Context(), rec); err != nil {
		l.Error("Failed to store report", "error", err)
		metrics.IngestReceived.WithLabelValues("storage_error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "storage failure"})
		return
	}

	if h.publisher != nil {
		ev := ReportEvent{
			ReportID:         rec.ID,
			UserID:           rec.UserID,
			UnitID:           rec.UnitID,
			CategoryID:       rec.CategoryID,
			LocationID:       rec.LocationID,
			CapturedAt:       rec.CapturedAt,
			SubmittedOffline: rec.SubmittedOffline,
			ReceivedAt:       rec.ReceivedAt,
		}
		if err := h.publisher.ReportAccepted(r.Context(), ev); err != nil {
			l.Warn("Report stored but event publish failed", "error", err)
			metrics.EventsPublished.WithLabelValues("error").Inc()
		} else {
			metrics.EventsPublished.WithLabelValues("published").Inc()
		}
	}

	metrics.IngestReceived.WithLabelValues("accepted").Inc()
	l.Info("Report accepted", "offline", rec.SubmittedOffline)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": rec.ID})
}

func (h *Handler) parseSubmission(r *http.Request) (ReportRecord, error) {
	if err := r.ParseMultipartForm(h.maxImageBytes + 1<<20); err != nil {
		return ReportRecord{}, fmt.Errorf("invalid multipart body: %w", err)
	}

	lat, err := strconv.ParseFloat(r.FormValue("latitude"), 64)
	if err != nil {
		return ReportRecord{}, fmt.Errorf("invalid latitude")
	}
	lng, err := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if err != nil {
		return ReportRecord{}, fmt.Errorf("invalid longitude")
	}

	capturedAt, err := time.Parse(time.RFC3339, r.FormValue("capturedAt"))
	if err != nil {
		return ReportRecord{}, fmt.Errorf("invalid capturedAt, want RFC3339")
	}

	offline, _ := strconv.ParseBool(r.FormValue("submittedOffline"))

	rec := ReportRecord{
		ID:               uuid.NewString(),
		UserID:           r.FormValue("userId"),
		UnitID:           r.FormValue("unitId"),
		CategoryID:       r.FormValue("categoryId"),
		LocationID:       r.FormValue("locationId"),
		Notes:            encoding.CleanText(r.FormValue("notes")),
		Latitude:         lat,
		Longitude:        lng,
		CapturedAt:       capturedAt.UTC(),
		SubmittedOffline: offline,
		ReceivedAt:       time.Now().UTC(),
	}

	for name, value := range map[string]string{
		"userId":     rec.UserID,
		"unitId":     rec.UnitID,
		"categoryId": rec.CategoryID,
		"locationId": rec.LocationID,
	} {
		if value == "" {
			return ReportRecord{}, fmt.Errorf("missing %s", name)
		}
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return ReportRecord{}, fmt.Errorf("missing image")
	}
	defer file.Close()

	img, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return ReportRecord{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(img)) > h.maxImageBytes {
		return ReportRecord{}, fmt.Errorf("image exceeds %d bytes", h.maxImageBytes)
	}
	if len(img) == 0 {
		return ReportRecord{}, fmt.Errorf("empty image")
	}
	rec.Image = img
	rec.ImageName = header.Filename

	return rec, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
