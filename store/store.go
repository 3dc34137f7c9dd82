// Package store defines the aggregate persistence interface. Each
// subsystem (lock, mirror) defines its own store interface; the
// composite Store composes them all. Backends: Postgres, Redis (locks
// only), and Memory.
package store

import (
	"context"

	"github.com/xraph/rostersync/lock"
	"github.com/xraph/rostersync/mirror"
)

// Store is the aggregate persistence interface. A single backend
// implements all subsystem stores.
//
// Split deployments keep the mirror in Postgres while serving locks
// from Redis; in that case build the service from the subsystem
// interfaces directly instead of this composite.
type Store interface {
	lock.Store
	mirror.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
