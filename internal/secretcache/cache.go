// Package secretcache holds the TTL bounded key to one-time-code store used by
// the email OTP challenge.
//
// The store keeps at most one code per key: Put always evicts the previous
// value before inserting, so a stale code can not validate after a newer one
// was issued. Entries die on their own after the TTL, it is the only self
// expiring structure in the system.
package secretcache

import (
	"context"
)

type Cache interface {
	// Put stores the code under key, replacing whatever was there
	// The TTL window restarts from this insert
	Put(ctx context.Context, key string, code string) error

	// Get returns the live code for the key
	// ok is false when nothing is cached or the TTL elapsed
	Get(ctx context.Context, key string) (code string, ok bool, err error)

	// Evict drops the entry if present
	Evict(ctx context.Context, key string) error
}
