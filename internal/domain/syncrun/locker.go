package syncrun

import (
	"context"
	"time"
)

// RunLocker gates run execution so at most one run per key exists across
// all processes. TryAcquire never blocks; contention means the caller
// records a skipped run instead of waiting.
type RunLocker interface {
	// TryAcquire attempts to take the lock for key. Returns false
	// without error when another holder owns it.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees the lock for key. Releasing an unheld lock is a no-op.
	Release(ctx context.Context, key string) error
}
