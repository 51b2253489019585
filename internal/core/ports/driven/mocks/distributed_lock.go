package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Ensure MockDistributedLock implements DistributedLock
var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory DistributedLock for testing.
// AcquireFn and ExtendFn override the default behaviour when set.
type MockDistributedLock struct {
	mu    sync.Mutex
	locks map[string]time.Time

	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ExtendFn  func(name string, ttl time.Duration) error

	// ReleaseErr, when set, is returned by Release after the lock is dropped
	ReleaseErr error

	// Call counters
	Acquires int
	Extends  int
	Releases int
}

// NewMockDistributedLock creates a new mock distributed lock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{locks: make(map[string]time.Time)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	m.Acquires++
	fn := m.AcquireFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, ok := m.locks[name]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	m.Extends++
	fn := m.ExtendFn
	m.mu.Unlock()
	if fn != nil {
		return fn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, ok := m.locks[name]; !ok || time.Now().After(expiry) {
		return domain.ErrLockNotHeld
	}
	m.locks[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Releases++
	delete(m.locks, name)
	return m.ReleaseErr
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}

// IsHeld reports whether the named lock is currently held
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.locks[name]
	return ok && time.Now().Before(expiry)
}
