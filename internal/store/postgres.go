// Package store keeps orders, customer profiles and the activity log in PostgreSQL.
package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"rmasync/internal/logger"
)

// Connect opens the database and migrates the schema.
func Connect(dsn string) (*gorm.DB, error) {
	const op = "Connect"

	log := logger.WithComponent("store")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get underlying sql.DB: %w", op, err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug().Msg("Connected to PostgreSQL")
	return db, nil
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&OrderRow{},
		&OrderItemRow{},
		&OrderMetaRow{},
		&OrderNoteRow{},
		&ProfileRow{},
		&ActivityRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
