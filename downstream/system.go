// Package downstream defines the write contract against the systems a
// cohort uses day to day: the course platform, the chat server, and the
// meeting-link service. Each system exposes the same three operations,
// and every write is an idempotent upsert keyed by the stable
// (participant, system) pair — calling twice with the same desired state
// is a no-op the second time. Order independence across participants is a
// requirement, not a convenience.
package downstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/rostersync/mirror"
)

// ErrMembershipNotFound reports that no observed membership exists for
// the target in a system. Clients translate a downstream 404 into this.
var ErrMembershipNotFound = errors.New("rostersync/downstream: membership not found")

// Target addresses one participant within one program. It carries both
// mirrored records so a System can derive its own addressing (course id,
// chat server id, section key, meeting token) without further lookups.
type Target struct {
	Program     *mirror.Program
	Participant *mirror.Participant
}

// Membership is the desired or observed state of a participant in one
// system: whether they are present, and under which of that system's
// role names.
type Membership struct {
	Present bool   `json:"present"`
	Role    string `json:"role,omitempty"`
}

// Equal reports whether two memberships describe the same state.
// An absent membership matches regardless of role.
func (m Membership) Equal(other Membership) bool {
	if m.Present != other.Present {
		return false
	}
	if !m.Present {
		return true
	}
	return m.Role == other.Role
}

// System is one downstream system the engine reconciles against.
type System interface {
	// Name returns a stable identifier used in failure reports and
	// telemetry ("course", "chat", "meeting").
	Name() string

	// Addressable reports whether the target carries the identifiers
	// this system needs. Unaddressable targets are skipped without an
	// API call — observed state is only ever fetched when a write might
	// be needed.
	Addressable(t Target) bool

	// RoleFor translates a canonical mirror role into this system's own
	// role vocabulary. Membership.Role always carries the system's wire
	// role, so that observed and desired state compare exactly. The
	// second return is false when the role has no counterpart here.
	RoleFor(role mirror.Role) (string, bool)

	// ObserveMembership fetches the participant's current state in this
	// system. An absent membership is reported as Membership{Present:
	// false}, not as an error.
	ObserveMembership(ctx context.Context, t Target) (Membership, error)

	// EnsureMembership upserts the participant to the desired state.
	// Idempotent: repeating with the same desired state changes nothing.
	EnsureMembership(ctx context.Context, t Target, desired Membership) error
}

// APIError carries the HTTP status a downstream system answered with,
// plus a body snippet for triage.
type APIError struct {
	System string
	Status int
	Body   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("rostersync/downstream: %s responded %d: %s", e.System, e.Status, e.Body)
}

// Retryable reports whether the error is worth retrying: server-side
// failures are, client-side rejections are not.
func (e *APIError) Retryable() bool { return e.Status >= 500 }
