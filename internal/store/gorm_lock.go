package store

import (
	"context"
	"fmt"
	"time"

	"github.com/evolearn/studyhub/internal/model"
)

type lockTable struct {
	name   string
	column string
}

var lockTables = map[model.ResourceType]lockTable{
	model.ResourceDirectory: {name: "directory_locks", column: "directory_id"},
	model.ResourceDocument:  {name: "document_locks", column: "document_id"},
}

func lockTableFor(rt model.ResourceType) (lockTable, error) {
	t, ok := lockTables[rt]
	if !ok {
		return lockTable{}, fmt.Errorf("%w: %q", ErrUnknownResourceType, rt)
	}
	return t, nil
}

func (g *GormStore) DeleteExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, lock := range []any{&model.DirectoryLock{}, &model.DocumentLock{}} {
		res := g.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(lock)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (g *GormStore) DeleteExpiredLock(ctx context.Context, rt model.ResourceType, resourceID uint, now time.Time) error {
	t, err := lockTableFor(rt)
	if err != nil {
		return err
	}
	return g.db.WithContext(ctx).
		Exec("DELETE FROM "+t.name+" WHERE "+t.column+" = ? AND expires_at <= ?", resourceID, now).Error
}

func (g *GormStore) GetLock(ctx context.Context, rt model.ResourceType, resourceID uint) (*model.Lock, error) {
	t, err := lockTableFor(rt)
	if err != nil {
		return nil, err
	}

	var lock model.Lock
	err = g.db.WithContext(ctx).
		Table(t.name).
		Select(fmt.Sprintf("%[1]s.%[2]s AS resource_id, %[1]s.locked_by, %[1]s.lock_type, %[1]s.locked_at, %[1]s.expires_at, "+
			"users.name AS holder_name, users.email AS holder_email", t.name, t.column)).
		Joins("LEFT JOIN users ON users.id = "+t.name+".locked_by").
		Where(t.name+"."+t.column+" = ?", resourceID).
		Take(&lock).Error
	if err != nil {
		return nil, err
	}
	lock.ResourceType = rt

	return &lock, nil
}

func (g *GormStore) CreateLock(ctx context.Context, lock *model.Lock) error {
	switch lock.ResourceType {
	case model.ResourceDirectory:
		return g.db.WithContext(ctx).Create(&model.DirectoryLock{
			DirectoryID: lock.ResourceID,
			LockedBy:    lock.LockedBy,
			LockType:    lock.LockType,
			LockedAt:    lock.LockedAt,
			ExpiresAt:   lock.ExpiresAt,
		}).Error
	case model.ResourceDocument:
		return g.db.WithContext(ctx).Create(&model.DocumentLock{
			DocumentID: lock.ResourceID,
			LockedBy:   lock.LockedBy,
			LockType:   lock.LockType,
			LockedAt:   lock.LockedAt,
			ExpiresAt:  lock.ExpiresAt,
		}).Error
	}
	return fmt.Errorf("%w: %q", ErrUnknownResourceType, lock.ResourceType)
}

func (g *GormStore) RefreshLock(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType, expiresAt time.Time) (int64, error) {
	t, err := lockTableFor(rt)
	if err != nil {
		return 0, err
	}
	res := g.db.WithContext(ctx).
		Table(t.name).
		Where(t.column+" = ? AND locked_by = ?", resourceID, userID).
		Updates(map[string]any{"lock_type": lockType, "expires_at": expiresAt})
	return res.RowsAffected, res.Error
}

func (g *GormStore) DeleteLock(ctx context.Context, rt model.ResourceType, resourceID, userID uint) (int64, error) {
	t, err := lockTableFor(rt)
	if err != nil {
		return 0, err
	}
	res := g.db.WithContext(ctx).
		Exec("DELETE FROM "+t.name+" WHERE "+t.column+" = ? AND locked_by = ?", resourceID, userID)
	return res.RowsAffected, res.Error
}

func (g *GormStore) DeleteLockOfType(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType) (int64, error) {
	t, err := lockTableFor(rt)
	if err != nil {
		return 0, err
	}
	res := g.db.WithContext(ctx).
		Exec("DELETE FROM "+t.name+" WHERE "+t.column+" = ? AND locked_by = ? AND lock_type = ?", resourceID, userID, lockType)
	return res.RowsAffected, res.Error
}
