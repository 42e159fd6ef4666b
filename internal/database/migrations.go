package database

import (
	"gorm.io/gorm"

	"github.com/actionable-app/actionable/internal/models"
)

// AutoMigrate brings the schema up to date for every persisted model. Runs on
// every start; gorm only applies the missing pieces.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Task{},
		&models.PushToken{},
		&models.NotificationRecord{},
		&models.CacheEntry{},
	)
}
