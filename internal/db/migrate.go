package db

import (
	"fmt"

	"github.com/zulandar/obras/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the GORM models this tool stores.
func AllModels() []interface{} {
	return []interface{}{
		&models.DocumentRow{},
	}
}

// AutoMigrate creates or updates the document table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
