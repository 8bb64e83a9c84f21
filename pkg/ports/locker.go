package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates run access across multiple process replicas.
// It lets the session manager guarantee a single writer per run even when
// several instances share one JournalStore.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key
	// (typically a run ID). It blocks until the lock is acquired or the
	// context is canceled. The returned UnlockFunc MUST be called to
	// release the lock; the TTL bounds how long a crashed holder can
	// keep it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
