// Package lock serializes the check-then-insert section of store registration.
package lock

import (
	"context"
	"errors"
)

// StoreNamesKey guards the whole set of store names. Near-duplicates spelled
// differently must serialize, so registration never uses a per-name key.
const StoreNamesKey = "store-names"

// ErrNotAcquired is returned when the lock could not be taken before the context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker provides mutual exclusion keyed by name.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done. The
	// returned release func must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
