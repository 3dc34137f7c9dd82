// Package rostersync keeps program and participant records mirrored from an
// external CRM in sync with the downstream systems a cohort actually uses:
// the course platform, the chat server, and the meeting-link service.
//
// The module is a library, not a service. Import it, configure a store and
// the downstream clients, and run the synchronization engine from your own
// process — or use the rostersyncd daemon under cmd/.
//
// # Architecture
//
// rostersync follows a composable store pattern: the lock subsystem and the
// mirrored-dataset subsystem each define their own store interface, and a
// backend (Postgres, Redis, Memory) implements the ones it can serve. The
// mirrored dataset is strictly read-only here; another process owns the
// copy from the CRM.
//
// Correctness across a fleet of workers reduces to one primitive: the lock
// store's atomic set-if-absent-or-expired write. A sync run for a program
// happens under a TTL-bounded lock keyed by the program id alone, so
// concurrent triggers for the same program resolve to exactly one run and
// one skip. Downstream writes are idempotent upserts, which makes the
// bounded duplicate-run window after TTL expiry safe rather than merely
// tolerable.
package rostersync
