package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionRunStarted        = "run.started"
	ActionRunCompleted      = "run.completed"
	ActionRunFailed         = "run.failed"
	ActionParticipantFailed = "run.participant_failed"
	ActionLockConflict      = "run.lock_conflict"
	ActionNotificationSent  = "run.notification_sent"
)

// Audit event categories group related actions.
const (
	CategoryRun    = "rostersync.run"
	CategoryLock   = "rostersync.lock"
	CategoryNotify = "rostersync.notify"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceRun = "sync_run"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionRunStarted,
		ActionRunCompleted,
		ActionRunFailed,
		ActionParticipantFailed,
		ActionLockConflict,
		ActionNotificationSent,
	}
}
