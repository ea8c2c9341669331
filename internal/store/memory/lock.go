package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// LockManager is an in-process domain.LockManager. TTLs are honored so
// an abandoned lock expires the same way a redis lock would.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewLockManager creates an empty in-process lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]time.Time)}
}

// Acquire takes the named lock, returning domain.ErrLockHeld if another
// holder has it and its TTL has not lapsed.
func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expiry, ok := m.locks[key]; ok && expiry.After(now) {
		return nil, domain.ErrLockHeld
	}
	expiry := now.Add(ttl)
	m.locks[key] = expiry

	unlock := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Only release if we are still the holder; a lapsed TTL may
		// have let someone else in.
		if cur, ok := m.locks[key]; ok && cur.Equal(expiry) {
			delete(m.locks, key)
		}
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
