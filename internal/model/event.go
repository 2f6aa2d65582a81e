package model

import (
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventShareCreated      EventType = "share_created"
	EventUserAdded         EventType = "user_added"
	EventUserRemoved       EventType = "user_removed"
	EventPermissionChanged EventType = "permission_changed"
	EventDirectoryCreated  EventType = "directory_created"
	EventDirectoryUpdated  EventType = "directory_updated"
	EventDirectoryMoved    EventType = "directory_moved"
	EventDirectoryDeleted  EventType = "directory_deleted"
	EventDocumentCreated   EventType = "document_created"
	EventDocumentUpdated   EventType = "document_updated"
	EventDocumentMoved     EventType = "document_moved"
	EventDocumentDeleted   EventType = "document_deleted"
	EventLockReleased      EventType = "lock_released"
)

// Event is an append only audit row. Rows are never updated.
type Event struct {
	ID          uint      `gorm:"primaryKey"`
	ShareID     *uint     `gorm:"index"`
	DirectoryID *uint     `gorm:"index"`
	DocumentID  *uint     `gorm:"index"`
	UserID      uint      `gorm:"not null"`
	EventType   EventType `gorm:"not null"`
	Details     datatypes.JSON
	CreatedAt   time.Time `gorm:"index"`
}

func (Event) TableName() string {
	return "events"
}

// EventEntry is an event joined with the acting user's profile.
type EventEntry struct {
	Event
	UserName  string
	UserEmail string
}
