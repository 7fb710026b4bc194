package models

// Term is a taxonomy term such as a milestone category.
type Term struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Taxonomy string `gorm:"size:32;not null;index"`
	Name     string `gorm:"size:200;not null"`
	Slug     string `gorm:"size:200"`
}

// TermRelationship attaches a term to a post.
type TermRelationship struct {
	ObjectID uint `gorm:"primaryKey"`
	TermID   uint `gorm:"primaryKey"`
}
