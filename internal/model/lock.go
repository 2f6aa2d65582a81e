package model

import (
	"time"
)

type ResourceType string

const (
	ResourceDirectory ResourceType = "directory"
	ResourceDocument  ResourceType = "document"
)

func (r ResourceType) Valid() bool {
	return r == ResourceDirectory || r == ResourceDocument
}

type LockType string

const (
	LockEditing     LockType = "editing"
	LockMoving      LockType = "moving"
	LockDeleting    LockType = "deleting"
	LockSummarizing LockType = "summarizing"
)

func (l LockType) Valid() bool {
	switch l {
	case LockEditing, LockMoving, LockDeleting, LockSummarizing:
		return true
	}
	return false
}

// DirectoryLock and DocumentLock hold at most one row per resource, the
// unique index is what settles two users racing for the same resource.
type DirectoryLock struct {
	ID          uint     `gorm:"primaryKey"`
	DirectoryID uint     `gorm:"uniqueIndex;not null"`
	LockedBy    uint     `gorm:"index;not null"`
	LockType    LockType `gorm:"not null"`
	LockedAt    time.Time
	ExpiresAt   time.Time `gorm:"index"`
}

func (DirectoryLock) TableName() string {
	return "directory_locks"
}

type DocumentLock struct {
	ID         uint     `gorm:"primaryKey"`
	DocumentID uint     `gorm:"uniqueIndex;not null"`
	LockedBy   uint     `gorm:"index;not null"`
	LockType   LockType `gorm:"not null"`
	LockedAt   time.Time
	ExpiresAt  time.Time `gorm:"index"`
}

func (DocumentLock) TableName() string {
	return "document_locks"
}

// Lock is the resource independent view of a lock row, joined with the
// holder's profile.
type Lock struct {
	ResourceType ResourceType
	ResourceID   uint
	LockedBy     uint
	LockType     LockType
	LockedAt     time.Time
	ExpiresAt    time.Time
	HolderName   string
	HolderEmail  string
}
