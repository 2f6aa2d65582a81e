package model

import "gorm.io/gorm"

type Document struct {
	gorm.Model
	OwnerID     uint   `gorm:"index;not null"`
	DirectoryID *uint  `gorm:"index"`
	DisplayName string `gorm:"not null"`
	// StoragePath is relative to the owner's storage root.
	StoragePath string
	MimeType    string
	Size        int64
	TextContent string
	ModelUsed   string
}

func (Document) TableName() string {
	return "documents"
}
