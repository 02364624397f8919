package database

import (
	"database/sql"
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/lending/internal/entities"
)

// activeLoanIndex backs the one-outstanding-loan-per-book rule at the storage level.
const activeLoanIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_records_active_loan
ON borrow_records(user_id, book_id) WHERE status IN ('BORROWED', 'OVERDUE')`

type Database struct {
	DB *gorm.DB
}

type Options struct {
	LogLevel logger.LogLevel
}

// NewDatabase opens (or creates) the SQLite file at dbPath and migrates the schema.
func NewDatabase(dbPath string) (*Database, error) {
	return NewDatabaseWithOptions(dbPath, Options{LogLevel: logger.Warn})
}

func NewDatabaseWithOptions(dbPath string, opts Options) (*Database, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger: logger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying connection: %w", err)
	}
	// One writer at a time; transactions queue on the busy timeout.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Book{},
		&entities.BorrowRecord{},
		&entities.AuditEvent{},
	)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.Exec(activeLoanIndex).Error; err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create active loan index: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

func dsn(path string) string {
	return path + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
}

// SQLDB exposes the pooled connection for read-only query builders.
func (d *Database) SQLDB() (*sql.DB, error) {
	return d.DB.DB()
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
