// Package syncer implements the reconciliation engine: one run takes a
// program's mirrored roster and converges every downstream system to it.
// Runs are idempotent and participant failures are isolated; a single
// broken record never aborts the rest of the roster.
package syncer

import (
	"time"

	"github.com/xraph/rostersync/id"
	"github.com/xraph/rostersync/mirror"
)

// Status is the lifecycle status of a sync run.
type Status string

const (
	StatusPending               Status = "pending"
	StatusRunning               Status = "running"
	StatusCompleted             Status = "completed"
	StatusCompletedWithFailures Status = "completed_with_failures"
	StatusAbortedFatal          Status = "aborted_fatal"
)

// Run is one request to synchronize a program. The lock key is derived
// from Program alone; NotifyAddress and Force never influence mutual
// exclusion.
type Run struct {
	ID      id.RunID          `json:"id"`
	Program mirror.ProgramRef `json:"program"`

	// Force re-applies desired state even when the observed state
	// already matches.
	Force bool `json:"force,omitempty"`

	// NotifyAddress, when set, receives exactly one outcome report after
	// the run finishes (success or failure alike).
	NotifyAddress string `json:"notify_address,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewRun creates a pending run for a program.
func NewRun(program mirror.ProgramRef) *Run {
	return &Run{
		ID:        id.NewRunID(),
		Program:   program,
		CreatedAt: time.Now().UTC(),
	}
}

// Failure records one participant that could not be synchronized, and in
// which system the attempt broke. At most one failure is recorded per
// participant per run.
type Failure struct {
	Participant mirror.ParticipantRef `json:"participant"`
	System      string                `json:"system"`
	Detail      string                `json:"detail"`
}

// Outcome is the aggregate result of a run. A run with failures still
// finishes the whole roster; Status distinguishes a clean pass from a
// partial one, and AbortedFatal marks runs that never touched any
// participant.
type Outcome struct {
	RunID   id.RunID          `json:"run_id"`
	Program mirror.ProgramRef `json:"program"`
	Status  Status            `json:"status"`

	// Reason explains an AbortedFatal run; empty otherwise.
	Reason string `json:"reason,omitempty"`

	// Total is the number of participants considered.
	Total int `json:"total"`
	// Skipped counts participants whose role has no downstream
	// counterpart. Neither successes nor failures.
	Skipped int `json:"skipped"`

	Failures []Failure `json:"failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Failed reports whether any participant failed.
func (o *Outcome) Failed() bool { return len(o.Failures) > 0 }

// Duration returns the run's wall-clock duration.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
