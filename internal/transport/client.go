package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/webtime/internal/storage"
)

// Client delivers usage log records to the remote collector over HTTP. The
// collector accepts a single record per request, so a date's records are
// posted individually; the date counts as delivered only if every record
// succeeds. No retries happen here: a failed date stays unacknowledged and
// the tracker retries it on the next flush cycle.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a collector client. The timeout bounds each individual
// request so a stalled collector cannot hang a flush cycle indefinitely.
func NewClient(endpoint string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "transport").Logger(),
	}
}

// SendDate posts one date's worth of per-app records to the collector.
func (c *Client) SendDate(ctx context.Context, records []storage.UsageLogEntry) error {
	for _, record := range records {
		if err := c.send(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, record storage.UsageLogEntry) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal usage log: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post usage log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("app", record.AppName).
			Str("date", record.Date).
			Bytes("body", detail).
			Msg("Collector rejected usage log")
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	return nil
}
