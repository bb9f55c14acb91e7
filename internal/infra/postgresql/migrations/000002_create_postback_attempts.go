package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/trackforge/postback-engine/internal/repository"
	"gorm.io/gorm"
)

func createPostbackAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_postback_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryAttemptModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_postback_attempts_postback_id ON postback_attempts (postback_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryAttemptModel{})
		},
	}
}
