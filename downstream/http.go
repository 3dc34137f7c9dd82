package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xraph/rostersync/retry"
)

// maxErrorBody bounds how much of an error response is kept for reports.
const maxErrorBody = 512

// CallJSON performs one JSON request against a downstream system.
// A 404 maps to ErrMembershipNotFound, other non-2xx statuses to
// *APIError. A nil out discards the response body.
func CallJSON(ctx context.Context, hc *http.Client, system, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("rostersync/downstream: %s: marshal request: %w", system, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("rostersync/downstream: %s: build request: %w", system, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("rostersync/downstream: %s: %s %s: %w", system, method, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode == http.StatusNotFound {
		return ErrMembershipNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort snippet
		return &APIError{System: system, Status: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rostersync/downstream: %s: decode response: %w", system, err)
	}
	return nil
}

// CallJSONRetry wraps CallJSON with bounded retries for transient
// failures (network errors and 5xx responses). maxRetries counts retry
// attempts after the initial call; delays come from the strategy.
func CallJSONRetry(ctx context.Context, hc *http.Client, strategy retry.Strategy, maxRetries int, system, method, url string, in, out any) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = CallJSON(ctx, hc, system, method, url, in, out)
		if lastErr == nil || !retryable(lastErr) || attempt >= maxRetries {
			return lastErr
		}

		select {
		case <-time.After(strategy.Delay(attempt + 1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrMembershipNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	// Network-level failures are transient until proven otherwise.
	return true
}
