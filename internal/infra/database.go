package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. The schema is owned
// by the SQL migrations in migrations/; AutoMigrate is never run against
// PostgreSQL. When autoMigrate is set, pending migrations are applied before
// the connection is returned.
func NewDatabase(dsn string, autoMigrate bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if autoMigrate {
		m, err := NewMigrator(sqlDB)
		if err != nil {
			return nil, fmt.Errorf("migrator: %w", err)
		}
		if err := m.Up(); err != nil {
			return nil, err
		}
	}

	return db, nil
}
