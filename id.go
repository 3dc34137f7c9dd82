package rostersync

import "github.com/xraph/rostersync/id"

// ID is the primary identifier type for rostersync entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
