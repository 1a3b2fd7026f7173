package docstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/obras/internal/db"
	"github.com/zulandar/obras/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL stores the document as a single row of the documents table.
type SQL struct {
	db   *gorm.DB
	key  string
	name string
}

// NewSQL migrates the documents table and returns a backend bound to key.
func NewSQL(gormDB *gorm.DB, key, name string) (*SQL, error) {
	if key == "" {
		key = "default"
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return &SQL{db: gormDB, key: key, name: name}, nil
}

// Name implements Backend.
func (s *SQL) Name() string { return s.name + "#" + s.key }

// Load implements Backend.
func (s *SQL) Load() ([]byte, error) {
	var row models.DocumentRow
	if err := s.db.Where(&models.DocumentRow{Key: s.key}).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: key %s", ErrNotExist, s.key)
		}
		return nil, fmt.Errorf("docstore: load %s: %w", s.key, err)
	}
	return []byte(row.Body), nil
}

// Save implements Backend with an upsert on the document key.
func (s *SQL) Save(data []byte) error {
	row := models.DocumentRow{
		Key:       s.key,
		Body:      string(data),
		UpdatedAt: time.Now(),
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("docstore: save %s: %w", s.key, result.Error)
	}
	return nil
}
