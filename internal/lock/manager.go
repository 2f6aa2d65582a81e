package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultTTL           = 300 * time.Second
	DefaultSweepInterval = 30 * time.Second
)

type Options struct {
	// TTL is used when Acquire is called without one.
	TTL time.Duration
	// SweepInterval bounds how often expired locks are purged.
	SweepInterval time.Duration
}

// Manager hands out advisory, non blocking, time bounded locks on
// directories and documents. Callers that fail to acquire a lock get an
// answer right away; nothing is queued.
type Manager struct {
	store store.LockStore
	clock clock.Clock
	ttl   time.Duration
	sweep time.Duration

	mu        sync.Mutex
	lastSweep time.Time
}

func NewManager(s store.LockStore, clk clock.Clock, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	return &Manager{
		store: s,
		clock: clk,
		ttl:   opts.TTL,
		sweep: opts.SweepInterval,
	}
}

// Acquire takes the lock for the user. A lock already held by the same user
// is refreshed and takes the new lock type. A lock held by someone else makes
// Acquire return false.
func (m *Manager) Acquire(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType, ttl time.Duration) (bool, error) {
	if err := validate(rt, resourceID, lockType); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	m.sweepExpired(ctx)

	now := m.clock.Now()
	if err := m.store.DeleteExpiredLock(ctx, rt, resourceID, now); err != nil {
		return false, fmt.Errorf("delete expired lock: %w", err)
	}

	existing, err := m.store.GetLock(ctx, rt, resourceID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("get lock: %w", err)
	}

	if existing != nil {
		if existing.LockedBy != userID {
			return false, nil
		}
		return m.refresh(ctx, rt, resourceID, userID, lockType, now.Add(ttl))
	}

	err = m.store.CreateLock(ctx, &model.Lock{
		ResourceType: rt,
		ResourceID:   resourceID,
		LockedBy:     userID,
		LockType:     lockType,
		LockedAt:     now,
		ExpiresAt:    now.Add(ttl),
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the insert race to another request
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock: %w", err)
	}

	return true, nil
}

func (m *Manager) refresh(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType, expiresAt time.Time) (bool, error) {
	updated, err := m.store.RefreshLock(ctx, rt, resourceID, userID, lockType, expiresAt)
	if err != nil {
		return false, fmt.Errorf("refresh lock: %w", err)
	}
	return updated > 0, nil
}

// Release deletes the lock if the user holds it. Releasing a lock held by
// someone else, or no lock at all, returns false.
func (m *Manager) Release(ctx context.Context, rt model.ResourceType, resourceID, userID uint) (bool, error) {
	if err := validate(rt, resourceID, model.LockEditing); err != nil {
		return false, err
	}

	deleted, err := m.store.DeleteLock(ctx, rt, resourceID, userID)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}

	return deleted > 0, nil
}

// ReleaseType deletes the user's lock only while it still has lockType, so a
// lock the user has since taken for something else survives.
func (m *Manager) ReleaseType(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType) (bool, error) {
	if err := validate(rt, resourceID, lockType); err != nil {
		return false, err
	}

	deleted, err := m.store.DeleteLockOfType(ctx, rt, resourceID, userID, lockType)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}

	return deleted > 0, nil
}

// Inspect returns the active lock on the resource, or nil.
func (m *Manager) Inspect(ctx context.Context, rt model.ResourceType, resourceID uint) (*model.Lock, error) {
	if err := validate(rt, resourceID, model.LockEditing); err != nil {
		return nil, err
	}

	m.sweepExpired(ctx)

	lock, err := m.store.GetLock(ctx, rt, resourceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lock: %w", err)
	}

	// the sweep may not have run yet
	if !lock.ExpiresAt.After(m.clock.Now()) {
		return nil, nil
	}

	return lock, nil
}

// Require acquires the lock or fails with a *LockedError naming the holder.
func (m *Manager) Require(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType) error {
	ok, err := m.Acquire(ctx, rt, resourceID, userID, lockType, 0)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	holder, err := m.Inspect(ctx, rt, resourceID)
	if err != nil {
		return err
	}
	if holder == nil {
		// released between the two calls, report the conflict anyway
		return &LockedError{Lock: &model.Lock{ResourceType: rt, ResourceID: resourceID, LockType: lockType}}
	}

	return &LockedError{Lock: holder}
}

// WithLock runs fn while holding the lock and releases it afterwards.
func (m *Manager) WithLock(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType, fn func() error) error {
	if err := m.Require(ctx, rt, resourceID, userID, lockType); err != nil {
		return err
	}

	defer func() {
		if _, err := m.Release(context.WithoutCancel(ctx), rt, resourceID, userID); err != nil {
			logrus.Errorf("failed to release %s lock %d: %v", rt, resourceID, err)
		}
	}()

	return fn()
}

// Sweep purges expired locks now, regardless of when the last sweep ran.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	m.mu.Lock()
	m.lastSweep = m.clock.Now()
	m.mu.Unlock()

	return m.store.DeleteExpiredLocks(ctx, m.clock.Now())
}

func (m *Manager) sweepExpired(ctx context.Context) {
	now := m.clock.Now()

	m.mu.Lock()
	if !m.lastSweep.IsZero() && now.Sub(m.lastSweep) < m.sweep {
		m.mu.Unlock()
		return
	}
	m.lastSweep = now
	m.mu.Unlock()

	removed, err := m.store.DeleteExpiredLocks(ctx, now)
	if err != nil {
		logrus.Warnf("failed to sweep expired locks: %v", err)
		return
	}
	if removed > 0 {
		logrus.Debugf("swept %d expired locks", removed)
	}
}

func validate(rt model.ResourceType, resourceID uint, lockType model.LockType) error {
	if !rt.Valid() || resourceID == 0 {
		return fmt.Errorf("%w: %s %d", ErrInvalidResource, rt, resourceID)
	}
	if !lockType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLockType, lockType)
	}
	return nil
}
