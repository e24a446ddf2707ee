package database

import (
	"context"
	"fmt"

	"tabble/internal/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"              // SQLite driver
)

// Store keeps the local payment journal
type Store struct {
	db *gorm.DB
}

// Open initializes the database connection and migrates the journal tables.
// driver is either "sqlite3" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// a second connection to ":memory:" would see an empty database
		db.DB().SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.PaymentAttempt{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordPaymentAttempt stores the outcome of paying one order. The write
// goes ahead even when ctx is already cancelled.
func (s *Store) RecordPaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	return s.db.Create(attempt).Error
}

// PaymentAttempts lists the journal of a table, oldest first
func (s *Store) PaymentAttempts(ctx context.Context, tableNumber int) ([]models.PaymentAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var attempts []models.PaymentAttempt
	err := s.db.Where("table_number = ?", tableNumber).Order("id asc").Find(&attempts).Error
	return attempts, err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
