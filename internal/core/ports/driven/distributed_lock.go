package driven

import (
	"context"
	"time"
)

// DistributedLock serialises one-off startup work, such as schema migrations,
// across instances that share a backend.
type DistributedLock interface {
	// Acquire takes the named lock for at most ttl.
	// Returns false without error when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Extend pushes the expiry of a held lock to ttl from now.
	// Returns domain.ErrLockNotHeld if this instance no longer holds it.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Release drops the named lock if this instance holds it.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
