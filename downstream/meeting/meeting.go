// Package meeting implements the downstream.System contract against the
// meeting-link service: each participant with a meeting token gets an
// active access link, role-agnostic.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/xraph/rostersync/downstream"
	"github.com/xraph/rostersync/mirror"
	"github.com/xraph/rostersync/retry"
)

// SystemName identifies this system in failure reports and telemetry.
const SystemName = "meeting"

// attendeeRole is the single role the meeting service knows about.
const attendeeRole = "attendee"

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithRetry sets the retry strategy and attempt budget.
func WithRetry(s retry.Strategy, maxRetries int) Option {
	return func(c *Client) {
		c.strategy = s
		c.maxRetries = maxRetries
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the meeting-link service.
type Client struct {
	baseURL    string
	hc         *http.Client
	strategy   retry.Strategy
	maxRetries int
	logger     *slog.Logger
}

// New creates a meeting-link service client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		hc:         &http.Client{Timeout: 30 * time.Second},
		strategy:   retry.DefaultStrategy(),
		maxRetries: 2,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements downstream.System.
func (c *Client) Name() string { return SystemName }

// Addressable reports whether the participant carries a meeting token.
func (c *Client) Addressable(t downstream.Target) bool {
	return t.Participant.MeetingToken != ""
}

// RoleFor returns the attendee role for every mirror role; the meeting
// service only cares about link presence.
func (c *Client) RoleFor(_ mirror.Role) (string, bool) {
	return attendeeRole, true
}

// ObserveMembership fetches the current state of the access link.
func (c *Client) ObserveMembership(ctx context.Context, t downstream.Target) (downstream.Membership, error) {
	var resp struct {
		Active bool `json:"active"`
	}
	err := downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
		SystemName, http.MethodGet, c.linkURL(t), nil, &resp)
	if errors.Is(err, downstream.ErrMembershipNotFound) {
		return downstream.Membership{}, nil
	}
	if err != nil {
		return downstream.Membership{}, err
	}
	if !resp.Active {
		return downstream.Membership{}, nil
	}
	return downstream.Membership{Present: true, Role: attendeeRole}, nil
}

// EnsureMembership activates or revokes the access link. Link records are
// keyed by the participant's meeting token, so repeats are no-ops.
func (c *Client) EnsureMembership(ctx context.Context, t downstream.Target, desired downstream.Membership) error {
	if !desired.Present {
		err := downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
			SystemName, http.MethodDelete, c.linkURL(t), nil, nil)
		if errors.Is(err, downstream.ErrMembershipNotFound) {
			return nil // already absent
		}
		return err
	}

	body := struct {
		Participant string `json:"participant"`
		Program     string `json:"program"`
		Email       string `json:"email"`
	}{
		Participant: string(t.Participant.Ref),
		Program:     string(t.Program.Ref),
		Email:       t.Participant.Email,
	}
	return downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
		SystemName, http.MethodPut, c.linkURL(t), body, nil)
}

func (c *Client) linkURL(t downstream.Target) string {
	return fmt.Sprintf("%s/api/links/%s",
		c.baseURL,
		url.PathEscape(t.Participant.MeetingToken),
	)
}
