package daemon_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/daemon"
	"github.com/xraph/rostersync/downstream"
	"github.com/xraph/rostersync/mirror"
	"github.com/xraph/rostersync/notify"
	"github.com/xraph/rostersync/store/memory"
	"github.com/xraph/rostersync/syncer"
)

// fakeSystem is an in-memory downstream system for wiring tests.
type fakeSystem struct {
	name string

	mu      sync.Mutex
	state   map[mirror.ParticipantRef]downstream.Membership
	ensures int
}

func newFakeSystem(name string) *fakeSystem {
	return &fakeSystem{name: name, state: make(map[mirror.ParticipantRef]downstream.Membership)}
}

func (f *fakeSystem) Name() string { return f.name }

func (f *fakeSystem) Addressable(downstream.Target) bool { return true }

func (f *fakeSystem) RoleFor(r mirror.Role) (string, bool) {
	switch r {
	case mirror.RoleLearner:
		return "student", true
	case mirror.RoleCoach:
		return "staff", true
	}
	return "", false
}

func (f *fakeSystem) ObserveMembership(_ context.Context, t downstream.Target) (downstream.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[t.Participant.Ref], nil
}

func (f *fakeSystem) EnsureMembership(_ context.Context, t downstream.Target, desired downstream.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[t.Participant.Ref] = desired
	f.ensures++
	return nil
}

func (f *fakeSystem) ensureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensures
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	s.PutProgram(&mirror.Program{
		Ref:      "prog-1",
		Name:     "Cohort One",
		Status:   mirror.ProgramCurrent,
		CourseID: "c-1",
	})
	s.PutParticipants("prog-1", []*mirror.Participant{
		{Ref: "part-1", Program: "prog-1", Email: "a@example.com", Role: mirror.RoleLearner, Status: mirror.EnrollmentActive},
		{Ref: "part-2", Program: "prog-1", Email: "b@example.com", Role: mirror.RoleLearner, Status: mirror.EnrollmentActive},
	})
	return s
}

func newTestService(t *testing.T, store rostersync.Storer) *rostersync.Service {
	t.Helper()
	svc, err := rostersync.New(
		rostersync.WithStore(store),
		rostersync.WithLogger(slog.Default()),
		rostersync.WithSyncSchedule("@every 1h"),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestBuildRequiresStore(t *testing.T) {
	svc, err := rostersync.New()
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = daemon.Build(svc, daemon.WithSystem(newFakeSystem("course")))
	if !errors.Is(err, rostersync.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
}

func TestBuildRequiresSystems(t *testing.T) {
	svc := newTestService(t, seedStore(t))
	if _, err := daemon.Build(svc); err == nil {
		t.Fatal("build succeeded with no downstream systems")
	}
}

func TestBuildRejectsBadSchedule(t *testing.T) {
	svc, err := rostersync.New(
		rostersync.WithStore(seedStore(t)),
		rostersync.WithSyncSchedule("not a schedule"),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := daemon.Build(svc, daemon.WithSystem(newFakeSystem("course"))); err == nil {
		t.Fatal("build accepted an invalid schedule")
	}
}

func TestSyncNowConvergesParticipants(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store)
	course := newFakeSystem("course")
	chat := newFakeSystem("chat")

	d, err := daemon.Build(svc,
		daemon.WithSystem(course),
		daemon.WithSystem(chat),
		daemon.WithNotifier(notify.Noop{}),
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	out, err := d.SyncNow(context.Background(), "prog-1")
	if err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if out.Status != syncer.StatusCompleted {
		t.Fatalf("status = %q, want completed", out.Status)
	}
	if out.Total != 2 {
		t.Fatalf("total = %d, want 2", out.Total)
	}
	if course.ensureCount() != 2 || chat.ensureCount() != 2 {
		t.Fatalf("ensures = %d/%d, want 2/2", course.ensureCount(), chat.ensureCount())
	}

	// Lock must be free again after the run.
	held, err := store.GetLock(context.Background(), "sync:program:prog-1")
	if err != nil {
		t.Fatalf("get lock: %v", err)
	}
	if held != nil {
		t.Fatalf("lock still held after run: %+v", held)
	}
}

func TestSyncNowRunOptions(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store)
	course := newFakeSystem("course")

	var got *syncer.Run
	spy := notifierFunc(func(_ context.Context, run *syncer.Run, _ *syncer.Outcome) error {
		got = run
		return nil
	})

	d, err := daemon.Build(svc,
		daemon.WithSystem(course),
		daemon.WithNotifier(spy),
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := d.SyncNow(context.Background(), "prog-1",
		daemon.WithNotifyAddress("https://example.com/hook"),
		daemon.WithForce(),
	); err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if got == nil {
		t.Fatal("notifier was not invoked")
	}
	if got.NotifyAddress != "https://example.com/hook" || !got.Force {
		t.Fatalf("run options not applied: %+v", got)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	svc := newTestService(t, seedStore(t))
	d, err := daemon.Build(svc,
		daemon.WithSystem(newFakeSystem("course")),
		daemon.WithNotifier(notify.Noop{}),
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

// notifierFunc adapts a function to notify.Notifier.
type notifierFunc func(context.Context, *syncer.Run, *syncer.Outcome) error

func (f notifierFunc) Notify(ctx context.Context, run *syncer.Run, out *syncer.Outcome) error {
	return f(ctx, run, out)
}
