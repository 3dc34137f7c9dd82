package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/rostersync/lock"
	"github.com/xraph/rostersync/mirror"
	"github.com/xraph/rostersync/syncer"
	"github.com/xraph/rostersync/worker"
)

// cronParser supports standard 5-field cron and descriptors like "@every 5m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the structured logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithFleetLockTTL sets the TTL on the fleet-wide pass lock.
func WithFleetLockTTL(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.fleetLockTTL = d }
}

// WithTickInterval sets how often the scheduler checks whether the
// schedule is due. Mostly a test knob.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// Scheduler fires a recurring pass over every current program. A
// fleet-wide lock makes each pass at-most-one across workers; within a
// pass, programs fan out over the pool and each one takes its own
// program lock through the Runner, so a concurrent on-demand run just
// causes that program to be skipped this interval.
type Scheduler struct {
	schedule cronlib.Schedule
	mirror   mirror.Store
	locks    *lock.Manager
	runner   *Runner
	pool     *worker.Pool
	logger   *slog.Logger

	fleetLockTTL time.Duration
	tickInterval time.Duration

	nextMu sync.Mutex
	next   time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler from a cron expression.
func NewScheduler(
	expr string,
	m mirror.Store,
	locks *lock.Manager,
	runner *Runner,
	pool *worker.Pool,
	opts ...SchedulerOption,
) (*Scheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("rostersync/trigger: parse schedule %q: %w", expr, err)
	}

	s := &Scheduler{
		schedule:     sched,
		mirror:       m,
		locks:        locks,
		runner:       runner,
		pool:         pool,
		logger:       slog.Default(),
		fleetLockTTL: 30 * time.Minute,
		tickInterval: time.Second,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.next = s.schedule.Next(time.Now())
	return s, nil
}

// Start launches the tick goroutine. It returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("recurring trigger started",
		slog.Time("next_fire", s.next),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the tick goroutine.
// A pass already fanned out to the pool drains with the pool, not here.
func (s *Scheduler) Stop(_ context.Context) error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("recurring trigger stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			if s.due(now) {
				s.firePass(context.Background())
			}
		}
	}
}

// due reports whether the schedule has come due and advances the next
// fire time when it has.
func (s *Scheduler) due(now time.Time) bool {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()
	if now.Before(s.next) {
		return false
	}
	s.next = s.schedule.Next(now)
	return true
}

// firePass runs one full pass: every current program gets a run. The
// fleet lock keeps the pass at-most-one across the worker fleet; losing
// it is routine, another worker is already on it.
func (s *Scheduler) firePass(ctx context.Context) {
	token, err := s.locks.TryAcquire(ctx, lock.FleetKey, s.fleetLockTTL)
	if err != nil {
		s.logger.Debug("fleet pass skipped",
			slog.String("reason", err.Error()),
		)
		return
	}
	defer s.locks.Release(ctx, lock.FleetKey, token)

	programs, err := s.mirror.ListPrograms(ctx, mirror.ProgramCurrent)
	if err != nil {
		s.logger.Error("list current programs failed",
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("recurring pass started",
		slog.Int("programs", len(programs)),
	)

	var wg sync.WaitGroup
	for _, p := range programs {
		run := syncer.NewRun(p.Ref)
		wg.Add(1)
		err := s.pool.Submit(ctx, func(taskCtx context.Context) {
			defer wg.Done()
			// Lock conflicts and fatal aborts are already logged and
			// emitted by the runner; a pass keeps going regardless.
			_, _ = s.runner.RunNow(taskCtx, run) //nolint:errcheck
		})
		if err != nil {
			wg.Done()
			s.logger.Warn("pass submit failed",
				slog.String("program", string(p.Ref)),
				slog.String("error", err.Error()),
			)
		}
	}
	wg.Wait()

	s.logger.Info("recurring pass finished",
		slog.Int("programs", len(programs)),
	)
}
