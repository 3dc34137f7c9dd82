package mirror

import "context"

// Store defines the read contract over the mirrored dataset. The mirror
// has a single writer elsewhere and many readers here, so none of these
// queries take locks.
type Store interface {
	// GetProgram retrieves a program by its CRM reference.
	// Returns rostersync.ErrProgramNotFound when absent.
	GetProgram(ctx context.Context, ref ProgramRef) (*Program, error)

	// ListPrograms returns all programs with the given status.
	// An empty status returns every program.
	ListPrograms(ctx context.Context, status ProgramStatus) ([]*Program, error)

	// ListParticipants returns all participants of a program, in no
	// particular order. Processing order is not semantically significant
	// downstream.
	ListParticipants(ctx context.Context, ref ProgramRef) ([]*Participant, error)
}
