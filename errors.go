package rostersync

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore     = errors.New("rostersync: no store configured")
	ErrStoreClosed = errors.New("rostersync: store closed")

	// Mirror errors.
	ErrProgramNotFound     = errors.New("rostersync: program not found in mirror")
	ErrParticipantNotFound = errors.New("rostersync: participant not found in mirror")

	// Local configuration errors. A program without a linked course (or
	// other required local linkage) is an expected condition outside
	// production and must stay distinguishable from other fatal errors.
	ErrMissingLocalConfiguration = errors.New("rostersync: missing local configuration for program")

	// Lock errors. ErrLockHeld is the normal outcome of concurrent
	// triggers, not a failure; callers skip the run and let the next
	// interval self-heal.
	ErrLockHeld     = errors.New("rostersync: sync lock held by another runner")
	ErrLockNotFound = errors.New("rostersync: sync lock not found")
)

// FatalKind classifies run-level fatal errors so callers can decide whether
// to alert. MissingLocalConfiguration is non-alerting outside production.
type FatalKind string

const (
	FatalProgramNotFound FatalKind = "program_not_found"
	FatalMissingConfig   FatalKind = "missing_local_configuration"
	FatalOther           FatalKind = "other"
)

// FatalError aborts a sync run before any participant is touched.
// It wraps the underlying cause and carries a FatalKind.
type FatalError struct {
	Kind FatalKind
	Err  error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("rostersync: fatal run error (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause for errors.Is / errors.As.
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError of the given kind.
func Fatal(kind FatalKind, err error) *FatalError {
	return &FatalError{Kind: kind, Err: err}
}

// FatalKindOf returns the FatalKind of err, or "" when err is not a
// FatalError (including nil).
func FatalKindOf(err error) FatalKind {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
