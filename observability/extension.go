// Package observability provides an OpenTelemetry metrics extension for
// system-wide sync lifecycle counters: runs started, completed, failed,
// participant failures, lock conflicts, and notification deliveries.
//
// For per-run histograms and tracing, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/rostersync/ext"
	"github.com/xraph/rostersync/syncer"
)

const meterName = "github.com/xraph/rostersync/observability"

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.RunStarted        = (*MetricsExtension)(nil)
	_ ext.RunCompleted      = (*MetricsExtension)(nil)
	_ ext.RunFailed         = (*MetricsExtension)(nil)
	_ ext.ParticipantFailed = (*MetricsExtension)(nil)
	_ ext.LockConflict      = (*MetricsExtension)(nil)
	_ ext.NotificationSent  = (*MetricsExtension)(nil)
)

// MetricsExtension records sync lifecycle counters. Register it with the
// extension registry to track run rates, failure rates, per-system
// participant failures, lock contention, and report deliveries.
type MetricsExtension struct {
	runsStarted        metric.Int64Counter
	runsCompleted      metric.Int64Counter
	runsFailed         metric.Int64Counter
	participantsFailed metric.Int64Counter
	lockConflicts      metric.Int64Counter
	notificationsSent  metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global meter
// provider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.GetMeterProvider().Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Use an SDK meter backed by a manual reader for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	started, _ := meter.Int64Counter("rostersync.runs.started",
		metric.WithDescription("Sync runs started"))
	completed, _ := meter.Int64Counter("rostersync.runs.completed",
		metric.WithDescription("Sync runs finished without a fatal abort"))
	failed, _ := meter.Int64Counter("rostersync.runs.failed",
		metric.WithDescription("Sync runs aborted by a fatal error"))
	participants, _ := meter.Int64Counter("rostersync.participants.failed",
		metric.WithDescription("Participant sync failures by downstream system"))
	conflicts, _ := meter.Int64Counter("rostersync.lock.conflicts",
		metric.WithDescription("Runs skipped because the program lock was held"))
	sent, _ := meter.Int64Counter("rostersync.notifications.sent",
		metric.WithDescription("Outcome reports delivered"))

	return &MetricsExtension{
		runsStarted:        started,
		runsCompleted:      completed,
		runsFailed:         failed,
		participantsFailed: participants,
		lockConflicts:      conflicts,
		notificationsSent:  sent,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnRunStarted implements ext.RunStarted.
func (m *MetricsExtension) OnRunStarted(ctx context.Context, run *syncer.Run) error {
	m.runsStarted.Add(ctx, 1, metric.WithAttributes(programAttr(run)))
	return nil
}

// OnRunCompleted implements ext.RunCompleted.
func (m *MetricsExtension) OnRunCompleted(ctx context.Context, run *syncer.Run, out *syncer.Outcome, _ time.Duration) error {
	m.runsCompleted.Add(ctx, 1, metric.WithAttributes(
		programAttr(run),
		attribute.String("status", string(out.Status)),
	))
	return nil
}

// OnRunFailed implements ext.RunFailed.
func (m *MetricsExtension) OnRunFailed(ctx context.Context, run *syncer.Run, _ error) error {
	m.runsFailed.Add(ctx, 1, metric.WithAttributes(programAttr(run)))
	return nil
}

// OnParticipantFailed implements ext.ParticipantFailed.
func (m *MetricsExtension) OnParticipantFailed(ctx context.Context, run *syncer.Run, f syncer.Failure) error {
	m.participantsFailed.Add(ctx, 1, metric.WithAttributes(
		programAttr(run),
		attribute.String("system", f.System),
	))
	return nil
}

// OnLockConflict implements ext.LockConflict.
func (m *MetricsExtension) OnLockConflict(ctx context.Context, run *syncer.Run, _ string) error {
	m.lockConflicts.Add(ctx, 1, metric.WithAttributes(programAttr(run)))
	return nil
}

// OnNotificationSent implements ext.NotificationSent.
func (m *MetricsExtension) OnNotificationSent(ctx context.Context, run *syncer.Run, _ string) error {
	m.notificationsSent.Add(ctx, 1, metric.WithAttributes(programAttr(run)))
	return nil
}

func programAttr(run *syncer.Run) attribute.KeyValue {
	return attribute.String("program", string(run.Program))
}
