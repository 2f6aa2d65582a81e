package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name           string
	Email          string `gorm:"uniqueIndex;not null"`
	AuthToken      string `gorm:"index"`
	TokenExpiresAt *time.Time
}

func (User) TableName() string {
	return "users"
}
