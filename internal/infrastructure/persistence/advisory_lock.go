package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain/syncrun"
)

// AdvisoryLocker implements syncrun.RunLocker on PostgreSQL advisory locks.
// Each held lock pins one connection from the pool: advisory locks are
// session scoped, so the lock lives exactly as long as its connection. A
// crashed process drops its connections and PostgreSQL releases the locks,
// which is why no TTL bookkeeping is needed here.
type AdvisoryLocker struct {
	db *gorm.DB

	mu   sync.Mutex
	held map[string]*sql.Conn
}

// NewAdvisoryLocker creates a locker over the given database handle
func NewAdvisoryLocker(db *gorm.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, held: make(map[string]*sql.Conn)}
}

var _ syncrun.RunLocker = (*AdvisoryLocker)(nil)

// TryAcquire attempts the lock without blocking. The ttl is ignored: the
// session scope of the advisory lock bounds its lifetime instead.
func (l *AdvisoryLocker) TryAcquire(ctx context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	if _, ok := l.held[key]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	sqlDB, err := l.db.DB()
	if err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID(key)).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.mu.Lock()
	l.held[key] = conn
	l.mu.Unlock()
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool. Releasing
// a lock this process does not hold is a no-op.
func (l *AdvisoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID(key))
	closeErr := conn.Close()
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return closeErr
}

// lockID folds a run key into the signed 64-bit space advisory locks use
func lockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
