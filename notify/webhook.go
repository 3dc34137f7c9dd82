package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/rostersync/syncer"
)

// WebhookOption configures a Webhook notifier.
type WebhookOption func(*Webhook)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) WebhookOption {
	return func(w *Webhook) { w.hc = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// Webhook posts the outcome report as JSON to the run's notify address.
// No retries: a report is advisory, and the run's state is already
// final by the time it is sent.
type Webhook struct {
	hc     *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(opts ...WebhookOption) *Webhook {
	w := &Webhook{
		hc:     &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, run *syncer.Run, out *syncer.Outcome) error {
	if run.NotifyAddress == "" {
		return nil
	}

	data, err := json.Marshal(NewReport(run, out))
	if err != nil {
		return fmt.Errorf("rostersync/notify: marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, run.NotifyAddress, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("rostersync/notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.hc.Do(req)
	if err != nil {
		w.logger.Warn("outcome notification failed",
			slog.String("run_id", run.ID.String()),
			slog.String("address", run.NotifyAddress),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("rostersync/notify: post report: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("outcome notification rejected",
			slog.String("run_id", run.ID.String()),
			slog.String("address", run.NotifyAddress),
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("rostersync/notify: report rejected with status %d", resp.StatusCode)
	}

	w.logger.Debug("outcome notification sent",
		slog.String("run_id", run.ID.String()),
		slog.String("address", run.NotifyAddress),
	)
	return nil
}
