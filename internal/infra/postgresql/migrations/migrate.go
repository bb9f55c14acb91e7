package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate applies all pending schema migrations in order.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is required")
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createPostbacksTable(),
		createPostbackAttemptsTable(),
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
