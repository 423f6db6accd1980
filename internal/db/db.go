package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/config"
	"github.com/slotter-org/cocreation-backend/internal/logger"
)

// Service is the common surface of the postgres and sqlite backends.
type Service interface {
	AutoMigrateAll() error
	DB() *gorm.DB
}

func Open(cfg config.DatabaseConfig, log *logger.Logger) (Service, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresService(cfg, log)
	case "sqlite":
		return NewSQLiteService(cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
