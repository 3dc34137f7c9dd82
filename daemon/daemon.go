// Package daemon wires all rostersync subsystems together. It creates the
// extension registry, sync engine, middleware chain, worker pool, lock
// manager, and both trigger paths from a configured Service.
//
// This package exists to break the import cycle: the root rostersync
// package defines Entity and the shared errors (imported by mirror, lock,
// syncer, and the rest) and so cannot import those packages back. The
// daemon package sits above all subsystem packages and below the
// application layer.
package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/downstream"
	"github.com/xraph/rostersync/ext"
	"github.com/xraph/rostersync/lock"
	"github.com/xraph/rostersync/mirror"
	mw "github.com/xraph/rostersync/middleware"
	"github.com/xraph/rostersync/notify"
	"github.com/xraph/rostersync/observability"
	"github.com/xraph/rostersync/syncer"
	"github.com/xraph/rostersync/trigger"
	"github.com/xraph/rostersync/worker"
)

// Daemon wraps a Service with fully wired subsystems.
// Use Build() to create one from a Service.
type Daemon struct {
	svc        *rostersync.Service
	extensions *ext.Registry
	systems    []downstream.System
	notifier   notify.Notifier
	mws        []mw.Middleware
	logger     *slog.Logger

	locks     *lock.Manager
	engine    *syncer.Engine
	executor  *worker.Executor
	pool      *worker.Pool
	runner    *trigger.Runner
	scheduler *trigger.Scheduler

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithExtension registers an extension with the daemon.
func WithExtension(e ext.Extension) Option {
	return func(d *Daemon) {
		d.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the daemon's run chain, after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(d *Daemon) {
		d.mws = append(d.mws, m)
	}
}

// WithSystem adds a downstream system client. Systems converge in
// registration order for every participant.
func WithSystem(s downstream.System) Option {
	return func(d *Daemon) {
		d.systems = append(d.systems, s)
	}
}

// WithNotifier sets the outcome report dispatcher. If not set, a webhook
// notifier posting to each run's notify address is used.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Daemon) {
		d.notifier = n
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the daemon.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Daemon) {
		d.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the daemon.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Daemon) {
		d.meterProvider = mp
	}
}

// Build creates a Daemon from an existing Service.
// The Service's store must implement both lock.Store and mirror.Store.
func Build(svc *rostersync.Service, opts ...Option) (*Daemon, error) {
	logger := svc.Logger()
	store := svc.Store()

	if store == nil {
		return nil, rostersync.ErrNoStore
	}

	ls, ok := store.(lock.Store)
	if !ok {
		return nil, fmt.Errorf("rostersync: store does not implement lock.Store")
	}
	ms, ok := store.(mirror.Store)
	if !ok {
		return nil, fmt.Errorf("rostersync: store does not implement mirror.Store")
	}

	d := &Daemon{
		svc:        svc,
		extensions: ext.NewRegistry(logger),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(d)
	}

	if len(d.systems) == 0 {
		return nil, fmt.Errorf("rostersync: no downstream systems configured")
	}
	if d.notifier == nil {
		d.notifier = notify.NewWebhook(notify.WithLogger(logger))
	}

	config := svc.Config()

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if d.tracerProvider != nil {
		tracer := d.tracerProvider.Tracer("github.com/xraph/rostersync")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if d.meterProvider != nil {
		meter := d.meterProvider.Meter("github.com/xraph/rostersync")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if d.meterProvider != nil {
		meter := d.meterProvider.Meter("github.com/xraph/rostersync/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	d.extensions.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(config.RunTimeout),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(d.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, d.mws...)

	d.locks = lock.NewManager(ls, lock.WithLogger(logger))
	d.engine = syncer.NewEngine(ms, d.systems,
		syncer.WithLogger(logger),
		syncer.WithEmitter(d.extensions),
	)
	d.executor = worker.NewExecutor(d.engine, d.extensions, logger, allMws...)
	d.pool = worker.NewPool(
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolLogger(logger),
	)
	d.runner = trigger.NewRunner(d.locks, d.executor, d.extensions,
		trigger.WithRunnerLogger(logger),
		trigger.WithLockTTL(config.LockTTL),
		trigger.WithNotifier(d.notifier),
	)

	scheduler, err := trigger.NewScheduler(config.SyncSchedule, ms, d.locks, d.runner, d.pool,
		trigger.WithSchedulerLogger(logger),
		trigger.WithFleetLockTTL(config.FleetLockTTL),
	)
	if err != nil {
		return nil, err
	}
	d.scheduler = scheduler

	// Wire back into the Service.
	svc.SetPool(d.pool)
	svc.SetScheduler(d.scheduler)
	svc.SetExtensions(d.extensions)

	return d, nil
}

// Start begins recurring synchronization by starting the worker pool and
// the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	return d.svc.Start(ctx)
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop(ctx context.Context) error {
	return d.svc.Stop(ctx)
}

// SyncNow executes an on-demand run for one program. It contends for the
// same per-program lock as the recurring pass.
func (d *Daemon) SyncNow(ctx context.Context, program mirror.ProgramRef, opts ...RunOption) (*syncer.Outcome, error) {
	run := syncer.NewRun(program)
	for _, opt := range opts {
		opt(run)
	}
	return d.runner.RunNow(ctx, run)
}

// RunOption configures an on-demand run.
type RunOption func(*syncer.Run)

// WithNotifyAddress sets the address that receives the outcome report.
func WithNotifyAddress(addr string) RunOption {
	return func(r *syncer.Run) { r.NotifyAddress = addr }
}

// WithForce re-applies desired state even where observed state already
// matches.
func WithForce() RunOption {
	return func(r *syncer.Run) { r.Force = true }
}

// Extensions returns the extension registry.
func (d *Daemon) Extensions() *ext.Registry { return d.extensions }

// Runner returns the sync runner shared by both trigger paths.
func (d *Daemon) Runner() *trigger.Runner { return d.runner }

// Scheduler returns the recurring trigger scheduler.
func (d *Daemon) Scheduler() *trigger.Scheduler { return d.scheduler }

// Locks returns the lock manager.
func (d *Daemon) Locks() *lock.Manager { return d.locks }

// Pool returns the sync worker pool.
func (d *Daemon) Pool() *worker.Pool { return d.pool }

// Service returns the underlying Service.
func (d *Daemon) Service() *rostersync.Service { return d.svc }
