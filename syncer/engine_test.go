package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/downstream"
	"github.com/xraph/rostersync/mirror"
	"github.com/xraph/rostersync/syncer"
)

// fakeMirror is an in-memory mirror.Store seeded per test.
type fakeMirror struct {
	programs     map[mirror.ProgramRef]*mirror.Program
	participants map[mirror.ProgramRef][]*mirror.Participant
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		programs:     make(map[mirror.ProgramRef]*mirror.Program),
		participants: make(map[mirror.ProgramRef][]*mirror.Participant),
	}
}

func (m *fakeMirror) GetProgram(_ context.Context, ref mirror.ProgramRef) (*mirror.Program, error) {
	p, ok := m.programs[ref]
	if !ok {
		return nil, rostersync.ErrProgramNotFound
	}
	return p, nil
}

func (m *fakeMirror) ListPrograms(_ context.Context, status mirror.ProgramStatus) ([]*mirror.Program, error) {
	var out []*mirror.Program
	for _, p := range m.programs {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *fakeMirror) ListParticipants(_ context.Context, ref mirror.ProgramRef) ([]*mirror.Participant, error) {
	return m.participants[ref], nil
}

// fakeSystem records observe and ensure calls and serves canned state.
type fakeSystem struct {
	name     string
	roles    map[mirror.Role]string
	state    map[mirror.ParticipantRef]downstream.Membership
	observes int
	ensures  []string // "ref:present:role"
	failFor  mirror.ParticipantRef
	failErr  error
}

func newFakeSystem(name string) *fakeSystem {
	return &fakeSystem{
		name: name,
		roles: map[mirror.Role]string{
			mirror.RoleLearner: "student",
			mirror.RoleCoach:   "staff",
		},
		state: make(map[mirror.ParticipantRef]downstream.Membership),
	}
}

func (s *fakeSystem) Name() string                       { return s.name }
func (s *fakeSystem) Addressable(downstream.Target) bool { return true }

func (s *fakeSystem) RoleFor(role mirror.Role) (string, bool) {
	wire, ok := s.roles[role]
	return wire, ok
}

func (s *fakeSystem) ObserveMembership(_ context.Context, t downstream.Target) (downstream.Membership, error) {
	if t.Participant.Ref == s.failFor {
		return downstream.Membership{}, s.failErr
	}
	s.observes++
	return s.state[t.Participant.Ref], nil
}

func (s *fakeSystem) EnsureMembership(_ context.Context, t downstream.Target, desired downstream.Membership) error {
	s.ensures = append(s.ensures, fmt.Sprintf("%s:%t:%s", t.Participant.Ref, desired.Present, desired.Role))
	s.state[t.Participant.Ref] = desired
	return nil
}

// spyEmitter records participant failure events.
type spyEmitter struct {
	failures []syncer.Failure
}

func (s *spyEmitter) EmitParticipantFailed(_ context.Context, _ *syncer.Run, f syncer.Failure) {
	s.failures = append(s.failures, f)
}

func seedProgram(m *fakeMirror, parts ...*mirror.Participant) {
	m.programs["prog-1"] = &mirror.Program{
		Ref:          "prog-1",
		Name:         "Spring Cohort",
		Status:       mirror.ProgramCurrent,
		CourseID:     "c-1",
		ChatServerID: "srv-1",
	}
	m.participants["prog-1"] = parts
}

func activeParticipant(ref mirror.ParticipantRef, role mirror.Role) *mirror.Participant {
	return &mirror.Participant{
		Ref:     ref,
		Program: "prog-1",
		Email:   string(ref) + "@example.com",
		Role:    role,
		Status:  mirror.EnrollmentActive,
	}
}

func TestEngineRunCompletes(t *testing.T) {
	m := newFakeMirror()
	seedProgram(m,
		activeParticipant("p-1", mirror.RoleLearner),
		activeParticipant("p-2", mirror.RoleLearner),
		activeParticipant("p-3", mirror.RoleCoach),
	)
	sys := newFakeSystem("course")
	e := syncer.NewEngine(m, []downstream.System{sys})

	out, err := e.Run(context.Background(), syncer.NewRun("prog-1"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != syncer.StatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Total != 3 || out.Skipped != 0 || len(out.Failures) != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(sys.ensures) != 3 {
		t.Fatalf("ensures = %v", sys.ensures)
	}
	if got := sys.state["p-3"]; !got.Present || got.Role != "staff" {
		t.Fatalf("p-3 state = %+v", got)
	}
}

func TestEngineSecondRunIsWriteFree(t *testing.T) {
	m := newFakeMirror()
	seedProgram(m, activeParticipant("p-1", mirror.RoleLearner))
	sys := newFakeSystem("course")
	e := syncer.NewEngine(m, []downstream.System{sys})

	if _, err := e.Run(context.Background(), syncer.NewRun("prog-1")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	writes := len(sys.ensures)

	out, err := e.Run(context.Background(), syncer.NewRun("prog-1"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if out.Status != syncer.StatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}
	if len(sys.ensures) != writes {
		t.Fatalf("second run wrote: %v", sys.ensures[writes:])
	}
}

func TestEngineForceRewrites(t *testing.T) {
	m := newFakeMirror()
	seedProgram(m, activeParticipant("p-1", mirror.RoleLearner))
	sys := newFakeSystem("course")
	e := syncer.NewEngine(m, []downstream.System{sys})

	if _, err := e.Run(context.Background(), syncer.NewRun("prog-1")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	writes := len(sys.ensures)

	run := syncer.NewRun("prog-1")
	run.Force = true
	if _, err := e.Run(context.Background(), run); err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if len(sys.ensures) != writes+1 {
		t.Fatalf("forced run should rewrite, ensures = %v", sys.ensures)
	}
}

func TestEngineFailureIsolation(t *testing.T) {
	m := newFakeMirror()
	seedProgram(m,
		activeParticipant("p-1", mirror.RoleLearner),
		activeParticipant("p-2", mirror.RoleLearner),
		activeParticipant("p-3", mirror.RoleLearner),
	)
	sys := newFakeSystem("course")
	sys.failFor = "p-2"
	sys.failErr = errors.New("upstream 502")

	em := &spyEmitter{}
	e := syncer.NewEngine(m, []downstream.System{sys}, syncer.WithEmitter(em))

	out, err := e.Run(context.Background(), syncer.NewRun("prog-1"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != syncer.StatusCompletedWithFailures {
		t.Fatalf("status = %s", out.Status)
	}
	if len(out.Failures) != 1 {
		t.Fatalf("failures = %+v", out.Failures)
	}
	f := out.Failures[0]
	if f.Participant != "p-2" || f.System != "course" {
		t.Fatalf("failure = %+v", f)
	}
	// p-1 and p-3 still converged.
	if !sys.state["p-1"].Present || !sys.state["p-3"].Present {
		t.Fatalf("healthy participants not synced: %+v", sys.state)
	}
	if len(em.failures) != 1 {
		t.Fatalf("emitted failures = %+v", em.failures)
	}
}

func TestEngineOneFailurePerParticipant(t *testing.T) {
	m := newFakeMirror()
	seedProgram(m, activeParticipant("p-1", mirror.RoleLearner))
	a := newFakeSystem("course")
	a.failFor = "p-1"
	a.failErr = errors.New("boom")
	b := newFakeSystem("chat")

	e := syncer.NewEngine(m, []downstream.System{a, b})

	out, err := e.Run(context.Background(), syncer.NewRun("prog-1"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Failures) != 1 {
		t.Fatalf("failures = %+v", out.Failures)
	}
	// Remaining systems are not attempted for the failed participant.
	if b.observes != 0 || len(b.ensures) != 0 {
		t.Fatalf("chat was called after course failed: observes=%d ensures=%v", b.observes, b.ensures)
	}
}

func TestEngineFatalProgramNotFound(t *testing.T) {
	m := newFakeMirror()
	sys := newFakeSystem("course")
	e := syncer.NewEngine(m, []downstream.System{sys})

	out, err := e.Run(context.Background(), syncer.NewRun("prog-missing"))
	if rostersync.FatalKindOf(err) != rostersync.FatalProgramNotFound {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, rostersync.ErrProgramNotFound) {
		t.Fatalf("err does not unwrap to ErrProgramNotFound: %v", err)
	}
	if out.Status != syncer.StatusAbortedFatal {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Reason == "" {
		t.Fatal("aborted outcome carries no reason")
	}
	if sys.observes != 0 || len(sys.ensures) != 0 {
		t.Fatal("fatal abort must not touch downstream systems")
	}
}

func TestEngineFatalMissingCourseLink(t *testing.T) {
	m := newFakeMirror()
	seedProgram(m, activeParticipant("p-1", mirror.RoleLearner))
	m.programs["prog-1"].CourseID = ""
	sys := newFakeSystem("course")
	e := syncer.NewEngine(m, []downstream.System{sys})

	out, err := e.Run(context.Background(), syncer.NewRun("prog-1"))
	if rostersync.FatalKindOf(err) != rostersync.FatalMissingConfig {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, rostersync.ErrMissingLocalConfiguration) {
		t.Fatalf("err does not unwrap to ErrMissingLocalConfiguration: %v", err)
	}
	if out.Status != syncer.StatusAbortedFatal {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Reason == "" {
		t.Fatal("aborted outcome carries no reason")
	}
	if sys.observes != 0 || len(sys.ensures) != 0 {
		t.Fatal("fatal abort must not touch downstream systems")
	}
}

func TestEngineSkipsUnmappedRoles(t *testing.T) {
	m := newFakeMirror()
	seedProgram(m,
		activeParticipant("p-1", mirror.RoleLearner),
		activeParticipant("p-2", mirror.Role("auditor")),
	)
	sys := newFakeSystem("course")
	e := syncer.NewEngine(m, []downstream.System{sys})

	out, err := e.Run(context.Background(), syncer.NewRun("prog-1"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != syncer.StatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Total != 2 || out.Skipped != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(sys.ensures) != 1 {
		t.Fatalf("ensures = %v", sys.ensures)
	}
}

func TestEngineRemovesWithdrawn(t *testing.T) {
	m := newFakeMirror()
	withdrawn := activeParticipant("p-1", mirror.RoleLearner)
	withdrawn.Status = mirror.EnrollmentWithdrawn
	seedProgram(m, withdrawn)

	sys := newFakeSystem("course")
	sys.state["p-1"] = downstream.Membership{Present: true, Role: "student"}
	e := syncer.NewEngine(m, []downstream.System{sys})

	out, err := e.Run(context.Background(), syncer.NewRun("prog-1"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != syncer.StatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}
	if got := sys.state["p-1"]; got.Present {
		t.Fatalf("p-1 still present: %+v", got)
	}
}
