package db

import (
	"fmt"

	"github.com/upstream-pm/upstream/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&models.Post{},
		&models.PostMeta{},
		&models.User{},
		&models.Activity{},
		&models.Term{},
		&models.TermRelationship{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every managed table and migrates them again. It is the
// SQLite counterpart of DropDatabase + CreateDatabase.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return AutoMigrate(db)
}
