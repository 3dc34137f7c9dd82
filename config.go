package rostersync

import "time"

// Config holds configuration for the sync service.
type Config struct {
	// SyncSchedule is the recurring trigger schedule. Accepts standard
	// 5-field cron expressions and descriptors like "@every 5m".
	SyncSchedule string

	// LockTTL bounds how long a per-program sync lock lives without a
	// release. It must exceed the 99th-percentile run duration; a run
	// that outlives it risks a bounded duplicate run, not corruption.
	LockTTL time.Duration

	// FleetLockTTL bounds the fleet-wide lock taken for a full recurring
	// pass over all current programs.
	FleetLockTTL time.Duration

	// Concurrency is the number of programs synced in parallel during a
	// recurring pass. Locks are per program, so full cross-program
	// concurrency is safe.
	Concurrency int

	// RunTimeout is an optional per-run execution deadline. Zero, the
	// default, disables it and leaves the lock TTL as the only bound on
	// a run. A non-zero value below LockTTL cancels slow runs mid-roster
	// and marks them aborted, so opt in deliberately.
	RunTimeout time.Duration

	// DownstreamTimeout is the per-call HTTP timeout for downstream
	// systems.
	DownstreamTimeout time.Duration

	// MaxRetries is the number of retry attempts for a failed downstream
	// call before it is recorded as a participant failure.
	MaxRetries int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults. The lock TTL
// default sits at the top of the historically observed run-duration band;
// it is a deployment parameter, not a design invariant.
func DefaultConfig() Config {
	return Config{
		SyncSchedule:      "@every 5m",
		LockTTL:           15 * time.Minute,
		FleetLockTTL:      30 * time.Minute,
		Concurrency:       4,
		RunTimeout:        0,
		DownstreamTimeout: 30 * time.Second,
		MaxRetries:        2,
		ShutdownTimeout:   30 * time.Second,
	}
}
