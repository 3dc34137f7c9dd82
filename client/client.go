// Package client provides a Go client for triggering syncs on a remote
// rostersyncd instance over its HTTP API.
//
// Usage:
//
//	c := client.New("https://rostersync.internal")
//
//	report, err := c.TriggerSync(ctx, "prog-1", client.SyncRequest{
//	    ForceRecheck: true,
//	})
//	if errors.Is(err, rostersync.ErrLockHeld) {
//	    // a sync for this program is already running
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/notify"
)

// SyncRequest is the body of a sync trigger request. Both fields are
// optional.
type SyncRequest struct {
	NotifyAddress string `json:"notify_address,omitempty"`
	ForceRecheck  bool   `json:"force_recheck,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to a remote rostersyncd HTTP API.
type Client struct {
	baseURL string
	hc      *http.Client
	logger  *slog.Logger
}

// New creates a Client for the given base URL. The default HTTP client
// carries a generous timeout because a sync runs synchronously inside
// the request.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 15 * time.Minute},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TriggerSync runs a sync for the program and returns its outcome report.
// A run already in progress surfaces as rostersync.ErrLockHeld; an
// unknown program as rostersync.ErrProgramNotFound; a program with no
// linked course as rostersync.ErrMissingLocalConfiguration.
func (c *Client) TriggerSync(ctx context.Context, program string, req SyncRequest) (*notify.Report, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rostersync/client: marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/programs/%s/sync", c.baseURL, url.PathEscape(program))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rostersync/client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rostersync/client: trigger sync for %s: %w", program, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		var report notify.Report
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return nil, fmt.Errorf("rostersync/client: decode report: %w", err)
		}
		return &report, nil
	case http.StatusConflict:
		return nil, fmt.Errorf("rostersync/client: program %s: %w", program, rostersync.ErrLockHeld)
	case http.StatusNotFound:
		return nil, fmt.Errorf("rostersync/client: program %s: %w", program, rostersync.ErrProgramNotFound)
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("rostersync/client: program %s: %w", program, rostersync.ErrMissingLocalConfiguration)
	default:
		return nil, c.errorFrom(resp)
	}
}

// Health checks the remote daemon's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("rostersync/client: build request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("rostersync/client: health: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return c.errorFrom(resp)
	}
	return nil
}

// errorFrom turns a non-success response into an error carrying the
// server's message when one was sent.
func (c *Client) errorFrom(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("rostersync/client: server responded %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("rostersync/client: server responded %d", resp.StatusCode)
}
