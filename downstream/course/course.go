// Package course implements the downstream.System contract against the
// course platform's enrollment API. Historically the slowest of the three
// downstream APIs, which is why observed state is only fetched when the
// engine already knows a write might be needed.
package course

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
const SystemName = "course"

// enrollmentTypes maps canonical mirror roles onto the enrollment API's
// role vocabulary. Roles missing here never reach this client; the engine
// skips participants with no downstream role mapping.
var enrollmentTypes = map[string]string{
	string(mirror.RoleLearner):   "StudentEnrollment",
	string(mirror.RoleCoach):     "TaEnrollment",
	string(mirror.RoleAssistant): "DesignerEnrollment",
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client (and with it, the call timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithRetry sets the retry strategy and attempt budget for transient
// failures.
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

// Client talks to the course platform's enrollment API.
type Client struct {
	baseURL    string
	hc         *http.Client
	strategy   retry.Strategy
	maxRetries int
	logger     *slog.Logger
}

// New creates a course platform client rooted at baseURL.
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

// Addressable reports whether the program has a linked course. The engine
// treats a missing course link as fatal before any participant work, so
// in practice this only guards direct use of the client.
func (c *Client) Addressable(t downstream.Target) bool {
	return t.Program.CourseID != ""
}

// RoleFor translates a mirror role into an enrollment type.
func (c *Client) RoleFor(role mirror.Role) (string, bool) {
	wire, ok := enrollmentTypes[string(role)]
	return wire, ok
}

// ObserveMembership fetches the participant's current enrollment.
func (c *Client) ObserveMembership(ctx context.Context, t downstream.Target) (downstream.Membership, error) {
	var resp struct {
		Type  string `json:"type"`
		State string `json:"state"`
	}
	err := downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
		SystemName, http.MethodGet, c.enrollmentURL(t), nil, &resp)
	if errors.Is(err, downstream.ErrMembershipNotFound) {
		return downstream.Membership{}, nil
	}
	if err != nil {
		return downstream.Membership{}, err
	}
	if resp.State != "active" {
		return downstream.Membership{}, nil
	}
	return downstream.Membership{Present: true, Role: resp.Type}, nil
}

// EnsureMembership upserts the enrollment to the desired state. The
// enrollment API keys on (course, participant), so repeated calls with
// the same desired state are no-ops server-side.
func (c *Client) EnsureMembership(ctx context.Context, t downstream.Target, desired downstream.Membership) error {
	if !desired.Present {
		err := downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
			SystemName, http.MethodDelete, c.enrollmentURL(t), nil, nil)
		if errors.Is(err, downstream.ErrMembershipNotFound) {
			return nil // already absent
		}
		return err
	}

	body := struct {
		Type    string `json:"type"`
		State   string `json:"state"`
		Section string `json:"section,omitempty"`
	}{
		Type:    desired.Role,
		State:   "active",
		Section: t.Participant.SectionKey,
	}
	return downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
		SystemName, http.MethodPut, c.enrollmentURL(t), body, nil)
}

func (c *Client) enrollmentURL(t downstream.Target) string {
	return fmt.Sprintf("%s/api/v1/courses/%s/enrollments/%s",
		c.baseURL,
		url.PathEscape(t.Program.CourseID),
		url.PathEscape(string(t.Participant.Ref)),
	)
}
