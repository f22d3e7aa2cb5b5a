// Package agent exposes the on-device HTTP surface the capture UI talks to:
// enqueue a report, read the undelivered count, reset the queue.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldops/patrol-sync/internal/models"
	"github.com/fieldops/patrol-sync/internal/store"
	"github.com/fieldops/patrol-sync/pkg/metrics"
)

// Drainer is the slice of the sync engine the capture surface needs: a nudge
// after a capture while online, so a report does not sit queued until the
// next probe or edge.
type Drainer interface {
	Trigger(ctx context.Context) bool
}

type Connectivity interface {
	IsOnline() bool
}

type Server struct {
	queue  store.ReportQueue
	engine Drainer
	conn   Connectivity
	logger *slog.Logger
}

func NewServer(q store.ReportQueue, e Drainer, c Connectivity, l *slog.Logger) *Server {
	return &Server{queue: q, engine: e, conn: c, logger: l}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reports", s.handleCapture)
	mux.HandleFunc("GET /api/queue", s.handleQueueCount)
	mux.HandleFunc("DELETE /api/queue", s.handleQueueClear)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// captureRequest is the JSON shape the capture UI posts. The image travels as
// base64 because it has to be stored that way anyway.
type captureRequest struct {
	SubmitterID string    `json:"submitterId"`
	UnitID      string    `json:"unitId"`
	CategoryID  string    `json:"categoryId"`
	LocationID  string    `json:"locationId"`
	ImageData   string    `json:"imageData"`
	Notes       string    `json:"notes"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CapturedAt  time.Time `json:"capturedAt"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid JSON body"})
		return
	}

	in := models.QueuedReportInput{
		SubmitterID: req.SubmitterID,
		UnitID:      req.UnitID,
		CategoryID:  req.CategoryID,
		LocationID:  req.LocationID,
		ImageData:   req.ImageData,
		Notes:       req.Notes,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CapturedAt:  req.CapturedAt,
	}
	if err := in.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	id, err := s.queue.Enqueue(r.Context(), in)
	if err != nil {
		// A failed enqueue loses the capture. This is the one failure the
		// user must see immediately.
		s.logger.Error("Capture lost: could not persist report", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "could not save report, please retry"})
		return
	}

	s.refreshBacklog(r.Context())
	s.logger.Info("Report captured and queued", "report_id", id)

	// Best effort: drain right away when the network is up. If a drain is
	// already running the trigger is a no-op and the next cycle picks it up.
	if s.engine != nil && s.conn != nil && s.conn.IsOnline() {
		go s.engine.Trigger(context.WithoutCancel(r.Context()))
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleQueueCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.queue.Count(r.Context())
	if err != nil {
		s.logger.Error("Queue count failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "queue unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": n})
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.ClearAll(r.Context()); err != nil {
		s.logger.Error("Queue clear failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "queue unavailable"})
		return
	}
	s.refreshBacklog(r.Context())
	s.logger.Warn("Queue cleared by user request")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refreshBacklog(ctx context.Context) {
	if n, err := s.queue.Count(ctx); err == nil {
		metrics.QueueBacklog.Set(float64(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
