package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Directory{},
		&Document{},
		&Share{},
		&ShareNode{},
		&ShareUser{},
		&DirectoryLock{},
		&DocumentLock{},
		&SummaryJob{},
		&Event{},
	)
}
