package model

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleEditor
}

type Share struct {
	gorm.Model
	RootDirectoryID uint `gorm:"index;not null"`
	OwnerID         uint `gorm:"index;not null"`
	Name            string
	Description     string
}

func (Share) TableName() string {
	return "shares"
}

type ShareNode struct {
	ID             uint `gorm:"primaryKey"`
	ShareID        uint `gorm:"uniqueIndex:idx_share_node;not null"`
	DirectoryID    uint `gorm:"uniqueIndex:idx_share_node;index;not null"`
	IncludeSubtree bool `gorm:"not null"`
	CreatedAt      time.Time
}

func (ShareNode) TableName() string {
	return "share_nodes"
}

type ShareUser struct {
	ID         uint `gorm:"primaryKey"`
	ShareID    uint `gorm:"uniqueIndex:idx_share_user;not null"`
	UserID     uint `gorm:"uniqueIndex:idx_share_user;index;not null"`
	Role       Role `gorm:"not null;default:viewer"`
	InvitedAt  time.Time
	AcceptedAt *time.Time
	UpdatedAt  time.Time
}

func (ShareUser) TableName() string {
	return "share_users"
}

// ShareGrant is a share node as seen by one of the share's members.
type ShareGrant struct {
	ShareID        uint
	DirectoryID    uint
	IncludeSubtree bool
	Role           Role
}

// ShareMember is a share user joined with the user's profile.
type ShareMember struct {
	UserID     uint
	Name       string
	Email      string
	Role       Role
	InvitedAt  time.Time
	AcceptedAt *time.Time
}
