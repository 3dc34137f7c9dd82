package redis

// Redis key naming conventions. All keys are prefixed with "rostersync:"
// to avoid collisions with co-tenant data.

const keyPrefix = "rostersync:"

// lockKey returns the key for a named lock: rostersync:lock:{name}
func lockKey(name string) string { return keyPrefix + "lock:" + name }
