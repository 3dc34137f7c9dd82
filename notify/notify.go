// Package notify delivers per-run outcome reports to the address a run
// was triggered with. Delivery happens after the run's lock is released
// and exactly once per run, success and failure alike.
package notify

import (
	"context"
	"time"

	"github.com/xraph/rostersync/syncer"
)

// Notifier dispatches one outcome report for a finished run.
type Notifier interface {
	// Notify sends the report for run to run.NotifyAddress. Runs without
	// an address are a no-op. A delivery failure is logged and surfaced,
	// but never retriggers the run.
	Notify(ctx context.Context, run *syncer.Run, out *syncer.Outcome) error
}

// Report is the wire form of an outcome notification.
type Report struct {
	RunID   string `json:"run_id"`
	Program string `json:"program"`
	Status  string `json:"status"`

	// Reason carries the abort cause for fatally aborted runs.
	Reason string `json:"reason,omitempty"`

	Total   int `json:"total"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	Failures []ReportFailure `json:"failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ReportFailure is one participant failure in a report.
type ReportFailure struct {
	Participant string `json:"participant"`
	System      string `json:"system"`
	Detail      string `json:"detail"`
}

// NewReport builds the report for a finished run.
func NewReport(run *syncer.Run, out *syncer.Outcome) Report {
	r := Report{
		RunID:      run.ID.String(),
		Program:    string(run.Program),
		Status:     string(out.Status),
		Reason:     out.Reason,
		Total:      out.Total,
		Skipped:    out.Skipped,
		Failed:     len(out.Failures),
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
	}
	for _, f := range out.Failures {
		r.Failures = append(r.Failures, ReportFailure{
			Participant: string(f.Participant),
			System:      f.System,
			Detail:      f.Detail,
		})
	}
	return r
}

// Noop is a Notifier that discards every report.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, *syncer.Run, *syncer.Outcome) error { return nil }
