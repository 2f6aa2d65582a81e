package model

import "gorm.io/gorm"

// Directory is a node of a user's directory tree. Cloud managed directories
// live in the database and can be shared, the rest only exist on disk.
type Directory struct {
	gorm.Model
	OwnerID      uint   `gorm:"index;not null"`
	ParentID     *uint  `gorm:"index"`
	Name         string `gorm:"not null"`
	Color        string
	CloudManaged bool `gorm:"not null;default:false"`
}

func (Directory) TableName() string {
	return "directories"
}

func (d *Directory) IsRoot() bool {
	return d.ParentID == nil
}
