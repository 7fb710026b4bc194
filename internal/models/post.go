package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a content record. Projects and milestones are both posts,
// distinguished by PostType.
type Post struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	PostType  string `gorm:"size:20;not null;index:idx_type_status"`
	Title     string `gorm:"type:text"`
	Content   string `gorm:"type:mediumtext"`
	Status    string `gorm:"size:20;default:publish;index:idx_type_status"`
	AuthorID  uint   `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// PostMeta is one key/value row attached to a post. A key may repeat.
type PostMeta struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	PostID    uint   `gorm:"not null;index:idx_post_key"`
	MetaKey   string `gorm:"size:255;not null;index:idx_post_key"`
	MetaValue string `gorm:"type:mediumtext"`
}

// TableName keeps the WordPress table name.
func (PostMeta) TableName() string {
	return "postmeta"
}
