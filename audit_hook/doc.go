// Package audithook is an extension that bridges sync lifecycle events
// to an immutable audit trail backend.
//
// Every run, participant, lock, and notification hook emits a structured
// audit event through the [Recorder] interface. The extension assigns
// appropriate severity levels (info for normal operations, warning for
// lock contention and participant failures, critical for fatal aborts)
// and rich metadata (program, run id, failure counts, errors).
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Write(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionRunFailed,
//	        audithook.ActionParticipantFailed,
//	    ),
//	)
package audithook
