package uploader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldops/patrol-sync/internal/models"
)

// Client delivers one report per call to the ingestion endpoint. There is no
// batch endpoint, so the sync engine invokes Submit once per queued record.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Submit POSTs the report as a multipart submission. Any transport error or
// non-2xx status is returned as an error; the caller decides what staying
// queued means.
func (c *Client) Submit(ctx context.Context, rep models.QueuedReport, userID string) error {
	sub, err := BuildSubmission(rep, userID)
	if err != nil {
		return fmt.Errorf("build submission: %w", err)
	}

	body, contentType, err := encodeMultipart(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload report %s: %w", rep.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingestion endpoint rejected report %s: %s: %s", rep.ID, resp.Status, snippet)
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
