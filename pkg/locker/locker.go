// Package locker provides distributed locking for coordinating maintenance
// work across multiple service instances.
package locker

import (
	"context"
	"time"
)

// DistributedLocker provides distributed lock capabilities across multiple
// instances. Implementations must be safe for concurrent use.
//
// Typical usage:
//
//	acquired, err := locker.Acquire(ctx, "janitor:scratch", ttl)
//	if err != nil {
//	    return err
//	}
//	if !acquired {
//	    return nil // another instance holds the lock
//	}
//	defer locker.Release(ctx, "janitor:scratch")
type DistributedLocker interface {
	// Acquire attempts to acquire the lock for key. Returns true if the lock
	// was acquired, false if another instance holds it. The lock expires
	// after ttl if not released; use the operation timeout for mutual
	// exclusion, or the cooldown period for rate limiting.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases the lock identified by key. Safe to call even if this
	// instance does not own the lock (no-op).
	Release(ctx context.Context, key string) error
}
