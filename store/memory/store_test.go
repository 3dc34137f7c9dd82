package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/id"
	"github.com/xraph/rostersync/mirror"
)

func TestAcquireLock(t *testing.T) {
	s := New()
	ctx := context.Background()
	tok := id.NewTokenID()

	ok, holder, err := s.AcquireLock(ctx, "sync:program:prog-1", tok, time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if !ok || holder != "" {
		t.Fatalf("acquire = %v, holder = %q", ok, holder)
	}

	// Second acquire while live must fail and name the holder.
	other := id.NewTokenID()
	ok, holder, err = s.AcquireLock(ctx, "sync:program:prog-1", other, time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if ok {
		t.Fatal("expected contention")
	}
	if holder != tok.String() {
		t.Fatalf("holder = %q, want %q", holder, tok.String())
	}
}

func TestAcquireLockTakesOverExpired(t *testing.T) {
	s := New()
	ctx := context.Background()

	stale := id.NewTokenID()
	if ok, _, _ := s.AcquireLock(ctx, "k", stale, time.Millisecond); !ok {
		t.Fatal("initial acquire failed")
	}
	time.Sleep(5 * time.Millisecond)

	fresh := id.NewTokenID()
	ok, _, err := s.AcquireLock(ctx, "k", fresh, time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if !ok {
		t.Fatal("expected takeover of expired lock")
	}

	// The stale holder's release must not disturb the new lock.
	if err := s.ReleaseLock(ctx, "k", stale); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
	l, err := s.GetLock(ctx, "k")
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if l == nil || l.Holder != fresh {
		t.Fatalf("lock = %+v, want held by fresh token", l)
	}
}

func TestReleaseLockMatchingToken(t *testing.T) {
	s := New()
	ctx := context.Background()
	tok := id.NewTokenID()

	if ok, _, _ := s.AcquireLock(ctx, "k", tok, time.Minute); !ok {
		t.Fatal("acquire failed")
	}
	if err := s.ReleaseLock(ctx, "k", tok); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}

	l, err := s.GetLock(ctx, "k")
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if l != nil {
		t.Fatalf("lock still present: %+v", l)
	}
}

func TestRefreshLock(t *testing.T) {
	s := New()
	ctx := context.Background()
	tok := id.NewTokenID()

	if ok, _, _ := s.AcquireLock(ctx, "k", tok, time.Minute); !ok {
		t.Fatal("acquire failed")
	}

	ok, err := s.RefreshLock(ctx, "k", tok, time.Hour)
	if err != nil {
		t.Fatalf("RefreshLock: %v", err)
	}
	if !ok {
		t.Fatal("refresh should succeed for current holder")
	}

	ok, err = s.RefreshLock(ctx, "k", id.NewTokenID(), time.Hour)
	if err != nil {
		t.Fatalf("RefreshLock: %v", err)
	}
	if ok {
		t.Fatal("refresh must fail for a stale token")
	}
}

func TestAcquireLockConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	const n = 32
	var won sync.Map
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := id.NewTokenID()
			ok, _, err := s.AcquireLock(ctx, "k", tok, time.Minute)
			if err != nil {
				t.Errorf("AcquireLock: %v", err)
				return
			}
			if ok {
				won.Store(tok.String(), true)
			}
		}()
	}
	wg.Wait()

	winners := 0
	won.Range(func(_, _ any) bool {
		winners++
		return true
	})
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestMirrorReads(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.PutProgram(&mirror.Program{Ref: "prog-1", Status: mirror.ProgramCurrent, CourseID: "c-1"})
	s.PutProgram(&mirror.Program{Ref: "prog-2", Status: mirror.ProgramFormer, CourseID: "c-2"})
	s.PutParticipants("prog-1", []*mirror.Participant{
		{Ref: "p-1", Program: "prog-1", Role: mirror.RoleLearner, Status: mirror.EnrollmentActive},
		{Ref: "p-2", Program: "prog-1", Role: mirror.RoleCoach, Status: mirror.EnrollmentActive},
	})

	p, err := s.GetProgram(ctx, "prog-1")
	if err != nil {
		t.Fatalf("GetProgram: %v", err)
	}
	if p.CourseID != "c-1" {
		t.Fatalf("program = %+v", p)
	}

	if _, err := s.GetProgram(ctx, "prog-9"); !errors.Is(err, rostersync.ErrProgramNotFound) {
		t.Fatalf("err = %v, want ErrProgramNotFound", err)
	}

	current, err := s.ListPrograms(ctx, mirror.ProgramCurrent)
	if err != nil {
		t.Fatalf("ListPrograms: %v", err)
	}
	if len(current) != 1 || current[0].Ref != "prog-1" {
		t.Fatalf("current = %+v", current)
	}

	all, err := s.ListPrograms(ctx, "")
	if err != nil {
		t.Fatalf("ListPrograms: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %+v", all)
	}

	parts, err := s.ListParticipants(ctx, "prog-1")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("participants = %+v", parts)
	}

	// Returned copies must not alias store state.
	parts[0].Email = "mutated@example.com"
	again, _ := s.ListParticipants(ctx, "prog-1")
	if again[0].Email == "mutated@example.com" {
		t.Fatal("store state aliased by returned copy")
	}
}
