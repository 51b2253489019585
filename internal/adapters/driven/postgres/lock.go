package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/credgate/internal/adapters/driven/sqlstore"
	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock with PostgreSQL session advisory locks.
// Used when no Redis is configured.
//
// Advisory locks belong to a database session, so each held lock keeps its own
// connection out of the pool until Release. The ttl arguments are ignored: the
// lock lasts until released or until the session ends.
type AdvisoryLock struct {
	db *sqlstore.DB

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter
func NewAdvisoryLock(db *sqlstore.DB) *AdvisoryLock {
	return &AdvisoryLock{
		db:    db,
		conns: make(map[string]*sql.Conn),
	}
}

// advisoryKey maps a lock name to the bigint key space of pg_advisory_lock
func advisoryKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("credgate:lock:" + name))
	return int64(h.Sum64())
}

// Acquire tries pg_try_advisory_lock on a dedicated connection.
// The connection goes back to the pool when the attempt fails.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.conns[name]; held {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryKey(name)).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conns[name] = conn
	return true, nil
}

// Extend checks that the session holding the lock is still alive
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	conn, held := l.conns[name]
	l.mu.Unlock()
	if !held {
		return fmt.Errorf("extend lock %s: %w", name, domain.ErrLockNotHeld)
	}

	if err := conn.PingContext(ctx); err != nil {
		return fmt.Errorf("extend lock %s: %w: %w", name, domain.ErrLockNotHeld, err)
	}
	return nil
}

// Release unlocks on the session that took the lock and returns its connection
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, held := l.conns[name]
	delete(l.conns, name)
	l.mu.Unlock()
	if !held {
		return nil
	}
	defer conn.Close()

	var released bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", advisoryKey(name)).Scan(&released); err != nil {
		// Drop the session rather than pool it with the lock possibly still held
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the PostgreSQL backend is healthy
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}
