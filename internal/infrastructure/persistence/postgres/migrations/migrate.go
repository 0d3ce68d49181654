package migrations

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ouredu/request-tracker/internal/domain/session"
	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/connection"
	"github.com/ouredu/request-tracker/pkg/config"
)

// MigrationRecord tracks the migration history
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;unique"`
	Version   int       `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for migration records
func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// AutoMigrate runs database migrations for the tracking schema. The
// deduplication unique index on access_details is created only when
// deduplicated mode is configured, since append mode writes one row per
// visit under the same key.
func AutoMigrate(db *connection.Database, cfg config.TrackingConfig, logger *zap.Logger) error {
	logger.Info("Starting automatic database migration...")

	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			logger.Error("Failed to create UUID extension", zap.Error(err))
			return fmt.Errorf("failed to create UUID extension: %v", err)
		}
	}

	models := []interface{}{
		&MigrationRecord{},
		&tracking.AccessSummary{},
		&tracking.AccessDetail{},
		&session.UserSession{},
	}

	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			logger.Error("Migration failed", zap.Error(err))
			return fmt.Errorf("failed to migrate %T: %v", model, err)
		}
	}

	if cfg.Detail.Dedup {
		err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_detail_identity
			ON access_details (user_id, role_id, endpoint, date)`).Error
		if err != nil {
			return fmt.Errorf("failed to create detail identity index: %v", err)
		}
	}

	if err := recordMigration(db.DB, "tracking_schema", 1); err != nil {
		return err
	}

	logger.Info("Database migration completed")
	return nil
}

func recordMigration(db *gorm.DB, name string, version int) error {
	record := MigrationRecord{Name: name, Version: version, AppliedAt: time.Now().UTC()}
	err := db.Where("name = ?", name).FirstOrCreate(&record).Error
	if err != nil {
		return fmt.Errorf("failed to record migration %s: %v", name, err)
	}
	return nil
}
