package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/trackforge/postback-engine/internal/repository"
	"gorm.io/gorm"
)

func createPostbacksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_postbacks",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PostbackModel{}); err != nil {
				return err
			}
			// Due-postback polling filters on status and next_attempt_at together.
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_postbacks_status_next_attempt_at ON postbacks (status, next_attempt_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PostbackModel{})
		},
	}
}
