package trigger_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/downstream"
	"github.com/xraph/rostersync/ext"
	"github.com/xraph/rostersync/lock"
	"github.com/xraph/rostersync/mirror"
	"github.com/xraph/rostersync/store/memory"
	"github.com/xraph/rostersync/syncer"
	"github.com/xraph/rostersync/trigger"
	"github.com/xraph/rostersync/worker"
)

// countingSystem is a downstream.System stub tracking ensure calls.
type countingSystem struct {
	mu      sync.Mutex
	ensures int
}

func (s *countingSystem) Name() string                       { return "course" }
func (s *countingSystem) Addressable(downstream.Target) bool { return true }

func (s *countingSystem) RoleFor(role mirror.Role) (string, bool) {
	if role == mirror.RoleLearner {
		return "student", true
	}
	return "", false
}

func (s *countingSystem) ObserveMembership(context.Context, downstream.Target) (downstream.Membership, error) {
	return downstream.Membership{}, nil
}

func (s *countingSystem) EnsureMembership(context.Context, downstream.Target, downstream.Membership) error {
	s.mu.Lock()
	s.ensures++
	s.mu.Unlock()
	return nil
}

func (s *countingSystem) ensureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensures
}

// lockCheckNotifier records whether the program lock was already free
// when the report went out.
type lockCheckNotifier struct {
	store        *memory.Store
	mu           sync.Mutex
	calls        int
	lockFree     bool
	lastStatus   syncer.Status
	lastReason   string
	lastProgram  mirror.ProgramRef
	lastFailures int
}

func (n *lockCheckNotifier) Notify(ctx context.Context, run *syncer.Run, out *syncer.Outcome) error {
	l, _ := n.store.GetLock(ctx, lock.KeyForProgram(string(run.Program)))
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.lockFree = l == nil || l.Expired(time.Now())
	n.lastStatus = out.Status
	n.lastReason = out.Reason
	n.lastProgram = out.Program
	n.lastFailures = len(out.Failures)
	return nil
}

// conflictSpy records lock conflict events.
type conflictSpy struct {
	mu      sync.Mutex
	holders []string
}

func (c *conflictSpy) Name() string { return "conflict-spy" }

func (c *conflictSpy) OnLockConflict(_ context.Context, _ *syncer.Run, holder string) error {
	c.mu.Lock()
	c.holders = append(c.holders, holder)
	c.mu.Unlock()
	return nil
}

func newTestRunner(t *testing.T, s *memory.Store, sys downstream.System, opts ...trigger.RunnerOption) (*trigger.Runner, *ext.Registry) {
	t.Helper()
	logger := slog.Default()
	registry := ext.NewRegistry(logger)
	engine := syncer.NewEngine(s, []downstream.System{sys}, syncer.WithEmitter(registry))
	executor := worker.NewExecutor(engine, registry, logger)
	locks := lock.NewManager(s)
	return trigger.NewRunner(locks, executor, registry, opts...), registry
}

func seedStore(s *memory.Store) {
	s.PutProgram(&mirror.Program{Ref: "prog-1", Status: mirror.ProgramCurrent, CourseID: "c-1"})
	s.PutParticipants("prog-1", []*mirror.Participant{
		{Ref: "p-1", Program: "prog-1", Role: mirror.RoleLearner, Status: mirror.EnrollmentActive},
		{Ref: "p-2", Program: "prog-1", Role: mirror.RoleLearner, Status: mirror.EnrollmentActive},
	})
}

func TestRunnerRunNow(t *testing.T) {
	s := memory.New()
	seedStore(s)
	sys := &countingSystem{}
	r, _ := newTestRunner(t, s, sys)

	out, err := r.RunNow(context.Background(), syncer.NewRun("prog-1"))
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if out.Status != syncer.StatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}
	if sys.ensureCount() != 2 {
		t.Fatalf("ensures = %d, want 2", sys.ensureCount())
	}

	// Lock released after the run.
	l, err := s.GetLock(context.Background(), lock.KeyForProgram("prog-1"))
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if l != nil {
		t.Fatalf("lock still held: %+v", l)
	}
}

func TestRunnerLockContention(t *testing.T) {
	s := memory.New()
	seedStore(s)
	sys := &countingSystem{}
	r, registry := newTestRunner(t, s, sys)

	spy := &conflictSpy{}
	registry.Register(spy)

	// Simulate a run in progress on another worker.
	locks := lock.NewManager(s)
	token, err := locks.TryAcquire(context.Background(), lock.KeyForProgram("prog-1"), time.Minute)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	out, err := r.RunNow(context.Background(), syncer.NewRun("prog-1"))
	if !errors.Is(err, rostersync.ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}
	if out != nil {
		t.Fatalf("outcome = %+v, want nil", out)
	}
	if sys.ensureCount() != 0 {
		t.Fatal("no sync work may happen under contention")
	}

	spy.mu.Lock()
	holders := append([]string(nil), spy.holders...)
	spy.mu.Unlock()
	if len(holders) != 1 || holders[0] != token.String() {
		t.Fatalf("conflict holders = %v, want [%s]", holders, token.String())
	}

	// After release the same program syncs normally.
	locks.Release(context.Background(), lock.KeyForProgram("prog-1"), token)
	if _, err := r.RunNow(context.Background(), syncer.NewRun("prog-1")); err != nil {
		t.Fatalf("RunNow after release: %v", err)
	}
}

func TestRunnerNotifiesAfterRelease(t *testing.T) {
	s := memory.New()
	seedStore(s)
	sys := &countingSystem{}
	n := &lockCheckNotifier{store: s}
	r, _ := newTestRunner(t, s, sys, trigger.WithNotifier(n))

	run := syncer.NewRun("prog-1")
	run.NotifyAddress = "https://hooks.example.com/sync"
	if _, err := r.RunNow(context.Background(), run); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls != 1 {
		t.Fatalf("notify calls = %d, want exactly 1", n.calls)
	}
	if !n.lockFree {
		t.Fatal("report went out before the lock was released")
	}
	if n.lastStatus != syncer.StatusCompleted || n.lastProgram != "prog-1" {
		t.Fatalf("report: status=%s program=%s", n.lastStatus, n.lastProgram)
	}
}

func TestRunnerNotifiesFatalAbort(t *testing.T) {
	s := memory.New() // no programs seeded
	sys := &countingSystem{}
	n := &lockCheckNotifier{store: s}
	r, _ := newTestRunner(t, s, sys, trigger.WithNotifier(n))

	run := syncer.NewRun("prog-missing")
	run.NotifyAddress = "https://hooks.example.com/sync"

	_, err := r.RunNow(context.Background(), run)
	if rostersync.FatalKindOf(err) != rostersync.FatalProgramNotFound {
		t.Fatalf("err = %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls != 1 {
		t.Fatalf("notify calls = %d, want 1", n.calls)
	}
	if n.lastStatus != syncer.StatusAbortedFatal {
		t.Fatalf("report status = %s", n.lastStatus)
	}
	if n.lastReason == "" {
		t.Fatal("fatal abort report has no reason")
	}
}

func TestRunnerSkipsNotifyWithoutAddress(t *testing.T) {
	s := memory.New()
	seedStore(s)
	sys := &countingSystem{}
	n := &lockCheckNotifier{store: s}
	r, _ := newTestRunner(t, s, sys, trigger.WithNotifier(n))

	if _, err := r.RunNow(context.Background(), syncer.NewRun("prog-1")); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls != 0 {
		t.Fatalf("notify calls = %d, want 0", n.calls)
	}
}
