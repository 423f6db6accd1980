package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type ChatTurnRepo interface {
	Append(ctx context.Context, tx *gorm.DB, turns ...*types.ChatTurn) error
	ListByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) ([]*types.ChatTurn, error)
	CountByRole(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, role string) (int64, error)
	RecentByRole(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, role string, limit int) ([]*types.ChatTurn, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ChatTurn, error)
}

type chatTurnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatTurnRepo(db *gorm.DB, baseLog *logger.Logger) ChatTurnRepo {
	return &chatTurnRepo{
		db:  db,
		log: baseLog.With("repo", "ChatTurnRepo"),
	}
}

// Append inserts turns in argument order so their ids follow it.
func (cr *chatTurnRepo) Append(ctx context.Context, tx *gorm.DB, turns ...*types.ChatTurn) error {
	if tx == nil {
		tx = cr.db
	}
	for _, turn := range turns {
		if turn.Stage == "" {
			turn.Stage = types.StageOnboarding
		}
		if err := tx.WithContext(ctx).Create(turn).Error; err != nil {
			cr.log.Error("Failed to append chat turn", "participantID", turn.ParticipantID, "error", err)
			return err
		}
	}
	return nil
}

func (cr *chatTurnRepo) ListByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) ([]*types.ChatTurn, error) {
	if tx == nil {
		tx = cr.db
	}
	var turns []*types.ChatTurn
	if err := tx.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("id ASC").
		Find(&turns).Error; err != nil {
		cr.log.Error("Failed to list chat turns", "participantID", participantID, "error", err)
		return nil, err
	}
	return turns, nil
}

func (cr *chatTurnRepo) CountByRole(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, role string) (int64, error) {
	if tx == nil {
		tx = cr.db
	}
	var count int64
	if err := tx.WithContext(ctx).
		Model(&types.ChatTurn{}).
		Where("participant_id = ? AND role = ?", participantID, role).
		Count(&count).Error; err != nil {
		cr.log.Error("Failed to count chat turns", "participantID", participantID, "error", err)
		return 0, err
	}
	return count, nil
}

// RecentByRole returns up to limit turns with the given role, newest first.
func (cr *chatTurnRepo) RecentByRole(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, role string, limit int) ([]*types.ChatTurn, error) {
	if tx == nil {
		tx = cr.db
	}
	var turns []*types.ChatTurn
	if err := tx.WithContext(ctx).
		Where("participant_id = ? AND role = ?", participantID, role).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		cr.log.Error("Failed to get recent chat turns", "participantID", participantID, "error", err)
		return nil, err
	}
	return turns, nil
}

func (cr *chatTurnRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ChatTurn, error) {
	if tx == nil {
		tx = cr.db
	}
	var turns []*types.ChatTurn
	if err := tx.WithContext(ctx).Order("id ASC").Find(&turns).Error; err != nil {
		cr.log.Error("Failed to list all chat turns", "error", err)
		return nil, err
	}
	return turns, nil
}
