// Package chat implements the downstream.System contract against the chat
// platform's server-member API: invite presence and role per participant.
package chat

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
const SystemName = "chat"

// memberRoles maps canonical mirror roles onto chat server roles.
var memberRoles = map[string]string{
	string(mirror.RoleLearner):   "member",
	string(mirror.RoleCoach):     "moderator",
	string(mirror.RoleAssistant): "moderator",
}

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

// Client talks to the chat platform's member API.
type Client struct {
	baseURL    string
	hc         *http.Client
	strategy   retry.Strategy
	maxRetries int
	logger     *slog.Logger
}

// New creates a chat platform client rooted at baseURL.
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

// Addressable reports whether the program has a linked chat server.
// Programs without one simply skip chat sync; it is not an error.
func (c *Client) Addressable(t downstream.Target) bool {
	return t.Program.ChatServerID != ""
}

// RoleFor translates a mirror role into a chat server role.
func (c *Client) RoleFor(role mirror.Role) (string, bool) {
	wire, ok := memberRoles[string(role)]
	return wire, ok
}

// ObserveMembership fetches the participant's current member record.
func (c *Client) ObserveMembership(ctx context.Context, t downstream.Target) (downstream.Membership, error) {
	var resp struct {
		Role string `json:"role"`
	}
	err := downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
		SystemName, http.MethodGet, c.memberURL(t), nil, &resp)
	if errors.Is(err, downstream.ErrMembershipNotFound) {
		return downstream.Membership{}, nil
	}
	if err != nil {
		return downstream.Membership{}, err
	}
	return downstream.Membership{Present: true, Role: resp.Role}, nil
}

// EnsureMembership upserts the member record to the desired state.
func (c *Client) EnsureMembership(ctx context.Context, t downstream.Target, desired downstream.Membership) error {
	if !desired.Present {
		err := downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
			SystemName, http.MethodDelete, c.memberURL(t), nil, nil)
		if errors.Is(err, downstream.ErrMembershipNotFound) {
			return nil // already absent
		}
		return err
	}

	body := struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}{
		Email: t.Participant.Email,
		Role:  desired.Role,
	}
	return downstream.CallJSONRetry(ctx, c.hc, c.strategy, c.maxRetries,
		SystemName, http.MethodPut, c.memberURL(t), body, nil)
}

func (c *Client) memberURL(t downstream.Target) string {
	return fmt.Sprintf("%s/api/servers/%s/members/%s",
		c.baseURL,
		url.PathEscape(t.Program.ChatServerID),
		url.PathEscape(string(t.Participant.Ref)),
	)
}
