package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/config"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(cfg config.DatabaseConfig, log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	//1) Construct DSN From Config
	serviceLog.Info("Attempting to construct DSN for Postgres now...")
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	serviceLog.Debug("Postgres DSN built :)", "host", cfg.Host, "port", cfg.Port, "dbname", cfg.Name)

	//2) Attempt DB Connection
	serviceLog.Info("Attempting to connect to Postgres DB now...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres DB", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres DB: %w", err)
	}
	serviceLog.Info("Successfully Connected to Postgres DB :)")

	return &PostgresService{db: db, log: serviceLog}, nil
}

type foreignKey struct {
	model      interface{}
	table      string
	name       string
	column     string
	references string
	onDelete   string
}

var foreignKeys = []foreignKey{
	{&types.ChatTurn{}, "chat_turn", "fk_chat_turn_participant_id", "participant_id", "participant", "CASCADE"},
	{&types.ParticipantProfile{}, "participant_profile", "fk_participant_profile_participant_id", "participant_id", "participant", "CASCADE"},
	{&types.GroupMember{}, "group_member", "fk_group_member_group_id", "group_id", "workshop_group", "CASCADE"},
	{&types.GroupMember{}, "group_member", "fk_group_member_participant_id", "participant_id", "participant", "CASCADE"},
	{&types.GroupChat{}, "group_chat", "fk_group_chat_group_id", "group_id", "workshop_group", "CASCADE"},
	{&types.Participant{}, "participant", "fk_participant_current_group_id", "current_group_id", "workshop_group", "SET NULL"},
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Starting AutoMigrateAll for all GORM models now...")
	if err := migrateModels(s.db); err != nil {
		s.log.Error("AutoMigrateAll failed for Base Tables :(", "error", err)
		return err
	}
	s.log.Info("AutoMigrateAll completed successfully for Base Tables :)")

	s.log.Info("Configuring Foreign Key Relationships for Base Tables now...")
	migrator := s.db.Migrator()
	for _, fk := range foreignKeys {
		if migrator.HasConstraint(fk.model, fk.name) {
			s.log.Debug("Foreign key already present, skipping", "constraint", fk.name)
			continue
		}
		stmt := fmt.Sprintf(
			`ALTER TABLE %q ADD CONSTRAINT %q FOREIGN KEY (%q) REFERENCES %q ("id") ON DELETE %s`,
			fk.table, fk.name, fk.column, fk.references, fk.onDelete,
		)
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", fk.name, err)
		}
	}
	s.log.Info("Successfully Added Foreign Key Relationships to Base Tables :)")
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func migrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Participant{},
		&types.ChatTurn{},
		&types.ParticipantProfile{},
		&types.Group{},
		&types.GroupMember{},
		&types.GroupChat{},
	)
}
