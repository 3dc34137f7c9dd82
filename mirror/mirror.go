// Package mirror defines the read-only view over CRM records mirrored into
// local storage. Programs and participants are owned by the external CRM
// and copied here by a separate process on a minutes-scale delay; this
// module only ever reads them.
package mirror

import (
	"github.com/xraph/rostersync"
)

// ProgramRef is the CRM's stable identifier for a program. Opaque to this
// module; never generated locally.
type ProgramRef string

// ParticipantRef is the CRM's stable identifier for a participant record.
type ParticipantRef string

// ProgramStatus is the lifecycle status of a program cohort.
type ProgramStatus string

const (
	ProgramCurrent ProgramStatus = "current"
	ProgramFuture  ProgramStatus = "future"
	ProgramFormer  ProgramStatus = "former"
)

// Role is a participant's role within a program, in CRM vocabulary.
// Roles with no downstream counterpart cause the participant to be
// skipped by the sync engine (neither success nor failure).
type Role string

const (
	RoleLearner   Role = "learner"
	RoleCoach     Role = "coach"
	RoleAssistant Role = "assistant"
)

// EnrollmentStatus is a participant's enrollment state.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Program is a cohort mirrored from the CRM, with references into the
// downstream systems it is linked to locally.
type Program struct {
	rostersync.Entity

	Ref    ProgramRef    `json:"ref"`
	Name   string        `json:"name"`
	Status ProgramStatus `json:"status"`

	// CourseID is the linked course in the course platform. Empty means
	// the local linkage was never configured; the engine treats that as
	// a fatal missing-configuration condition.
	CourseID string `json:"course_id,omitempty"`

	// ChatServerID is the linked chat server. Empty disables chat sync
	// for this program.
	ChatServerID string `json:"chat_server_id,omitempty"`

	TimeZone string `json:"time_zone,omitempty"`
}

// Participant is a person's membership record within a single program.
type Participant struct {
	rostersync.Entity

	Ref     ParticipantRef   `json:"ref"`
	Program ProgramRef       `json:"program"`
	Email   string           `json:"email"`
	Role    Role             `json:"role"`
	Status  EnrollmentStatus `json:"status"`

	// SectionKey groups the participant into the program's cohort or
	// schedule sub-structure (section addressing in the course system).
	SectionKey string `json:"section_key,omitempty"`

	// MeetingToken addresses the participant's access link in the
	// meeting system. Empty disables meeting sync for this participant.
	MeetingToken string `json:"meeting_token,omitempty"`
}
