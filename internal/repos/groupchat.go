package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type GroupChatRepo interface {
	Append(ctx context.Context, tx *gorm.DB, chats ...*types.GroupChat) error
	ListByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]*types.GroupChat, error)
	CountByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int64, error)
}

type groupChatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupChatRepo(db *gorm.DB, baseLog *logger.Logger) GroupChatRepo {
	return &groupChatRepo{
		db:  db,
		log: baseLog.With("repo", "GroupChatRepo"),
	}
}

func (gr *groupChatRepo) Append(ctx context.Context, tx *gorm.DB, chats ...*types.GroupChat) error {
	if tx == nil {
		tx = gr.db
	}
	for _, chat := range chats {
		if err := tx.WithContext(ctx).Create(chat).Error; err != nil {
			gr.log.Error("Failed to append group chat", "groupID", chat.GroupID, "error", err)
			return err
		}
	}
	return nil
}

func (gr *groupChatRepo) ListByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]*types.GroupChat, error) {
	if tx == nil {
		tx = gr.db
	}
	var chats []*types.GroupChat
	if err := tx.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("id ASC").
		Find(&chats).Error; err != nil {
		gr.log.Error("Failed to list group chats", "groupID", groupID, "error", err)
		return nil, err
	}
	return chats, nil
}

func (gr *groupChatRepo) CountByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = gr.db
	}
	var count int64
	if err := tx.WithContext(ctx).
		Model(&types.GroupChat{}).
		Where("group_id = ?", groupID).
		Count(&count).Error; err != nil {
		gr.log.Error("Failed to count group chats", "groupID", groupID, "error", err)
		return 0, err
	}
	return count, nil
}
