// Package sql persists checkpoints, tenant records and long-term memory with GORM.
//
// SQLite (pure Go, no cgo) serves development and tests; PostgreSQL serves production:
//
//	db, err := sql.Open("postgres", "host=db user=rfq dbname=rfq sslmode=disable")
//	if err != nil { ... }
//	if err := sql.Migrate(db); err != nil { ... }
//	store := sql.NewStore(db)
package sql

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the database. SQLite connections are limited to one so that an
// in-memory database is shared and writes never contend.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		if dsn == "" {
			dsn = ":memory:"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver != DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates every table used by this package.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&threadRow{},
		&versionRow{},
		&documentRow{},
		&rfqRow{},
		&proposalRow{},
		&memoryRow{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}
