package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/slotter-org/cocreation-backend/internal/logger"
)

// SQLiteService backs local development and tests with a single-file database.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(path string, log *logger.Logger) (*SQLiteService, error) {
	serviceLog := log.With("service", "SQLiteService")
	serviceLog.Info("Attempting to open SQLite DB now...", "path", path)
	dsn := path + "?_foreign_keys=off&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		serviceLog.Error("Failed to open SQLite DB", "error", err)
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	// sqlite allows a single writer; one connection keeps transactions from
	// tripping over each other.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access SQLite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteService{db: db, log: serviceLog}, nil
}

func (s *SQLiteService) AutoMigrateAll() error {
	s.log.Info("Starting AutoMigrateAll for SQLite now...")
	if err := migrateModels(s.db); err != nil {
		s.log.Error("AutoMigrateAll failed :(", "error", err)
		return err
	}
	return nil
}

func (s *SQLiteService) DB() *gorm.DB {
	return s.db
}
