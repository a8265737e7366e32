package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/orgdesk/modelgate/internal/models"
)

// Migrate creates or updates the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.UsageRecord{},
		&models.Setting{},
	)
}
