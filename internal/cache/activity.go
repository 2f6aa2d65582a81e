package cache

import (
	"context"
	"sync"
	"time"
)

// Activity remembers when a share last changed. A marker newer than a
// poller's timestamp proves there are updates; a missing or older marker
// proves nothing and the caller must ask the database.
type Activity interface {
	Touch(ctx context.Context, shareID uint, at time.Time) error
	LastChange(ctx context.Context, shareID uint) (time.Time, bool, error)
}

var _ Activity = (*MemoryActivity)(nil)

type MemoryActivity struct {
	mu      sync.RWMutex
	changed map[uint]time.Time
}

func NewMemoryActivity() *MemoryActivity {
	return &MemoryActivity{changed: make(map[uint]time.Time)}
}

func (m *MemoryActivity) Touch(ctx context.Context, shareID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.After(m.changed[shareID]) {
		m.changed[shareID] = at
	}
	return nil
}

func (m *MemoryActivity) LastChange(ctx context.Context, shareID uint) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.changed[shareID]
	return at, ok, nil
}
