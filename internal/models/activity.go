package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity is one audit trail entry recorded against a project.
type Activity struct {
	ID        string         `gorm:"primaryKey;size:36"`
	ProjectID uint           `gorm:"not null;index"`
	Subject   string         `gorm:"size:64;not null"`
	Action    string         `gorm:"size:16;not null"`
	Payload   datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time
}

// BeforeCreate assigns a UUID when none was set.
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
