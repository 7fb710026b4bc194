package models

import "time"

// User is an account that can author and be assigned to milestones.
type User struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Login       string `gorm:"size:60;not null;uniqueIndex"`
	DisplayName string `gorm:"size:250"`
	Email       string `gorm:"size:100"`
	CreatedAt   time.Time
}
