package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type GroupRepo interface {
	// CREATE
	Create(ctx context.Context, tx *gorm.DB, groups []*types.Group) ([]*types.Group, error)
	CreateMembers(ctx context.Context, tx *gorm.DB, members []*types.GroupMember) error

	// READ
	GetByNumber(ctx context.Context, tx *gorm.DB, number int) (*types.Group, error)
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Group, error)
	ListWithMembers(ctx context.Context, tx *gorm.DB) ([]*types.Group, error)
	Exists(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (bool, error)

	// FULL (HARD) DELETE
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	repoLog := baseLog.With("repo", "GroupRepo")
	return &groupRepo{db: db, log: repoLog}
}

func preloadMembers(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("group_member.position ASC")
		}).
		Preload("Members.Participant")
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (gr *groupRepo) Create(ctx context.Context, tx *gorm.DB, groups []*types.Group) ([]*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	if len(groups) == 0 {
		return []*types.Group{}, nil
	}
	if err := transaction.WithContext(ctx).Omit("Members").Create(&groups).Error; err != nil {
		gr.log.Error("Failed to create groups", "error", err)
		return nil, err
	}
	gr.log.Debug("Created groups", "count", len(groups))
	return groups, nil
}

func (gr *groupRepo) CreateMembers(ctx context.Context, tx *gorm.DB, members []*types.GroupMember) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	if len(members) == 0 {
		return nil
	}
	if err := transaction.WithContext(ctx).Omit("Participant").Create(&members).Error; err != nil {
		gr.log.Error("Failed to create group members", "error", err)
		return err
	}
	return nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

// GetByNumber returns nil, nil when no group carries the number.
func (gr *groupRepo) GetByNumber(ctx context.Context, tx *gorm.DB, number int) (*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var group types.Group
	err := transaction.WithContext(ctx).Scopes(preloadMembers).Where("number = ?", number).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		gr.log.Error("Failed to get group by number", "number", number, "error", err)
		return nil, err
	}
	return &group, nil
}

// GetByName returns the lowest numbered group with the name, or nil, nil.
func (gr *groupRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var group types.Group
	err := transaction.WithContext(ctx).
		Scopes(preloadMembers).
		Where("name = ?", name).
		Order("number ASC").
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		gr.log.Error("Failed to get group by name", "name", name, "error", err)
		return nil, err
	}
	return &group, nil
}

func (gr *groupRepo) ListWithMembers(ctx context.Context, tx *gorm.DB) ([]*types.Group, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var groups []*types.Group
	if err := transaction.WithContext(ctx).
		Scopes(preloadMembers).
		Order("number ASC").
		Find(&groups).Error; err != nil {
		gr.log.Error("Failed to list groups", "error", err)
		return nil, err
	}
	return groups, nil
}

func (gr *groupRepo) Exists(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).Model(&types.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		gr.log.Error("Failed to check group existence", "groupID", groupID, "error", err)
		return false, err
	}
	return count > 0, nil
}

// ----------------------------------------------------------------
// FULL (HARD) DELETE
// ----------------------------------------------------------------

// DeleteAll removes the whole grouping epoch in dependency order: transcripts,
// memberships, groups.
func (gr *groupRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	gr.log.Info("Starting DeleteAll groups now...")
	steps := []struct {
		name  string
		model interface{}
	}{
		{"group_chat", &types.GroupChat{}},
		{"group_member", &types.GroupMember{}},
	}
	for _, step := range steps {
		if err := transaction.WithContext(ctx).Where("1 = 1").Delete(step.model).Error; err != nil {
			gr.log.Error("Failed to delete rows", "table", step.name, "error", err)
			return err
		}
	}
	if err := transaction.WithContext(ctx).Where("1 = 1").Delete(&types.Group{}).Error; err != nil {
		gr.log.Error("Failed to delete rows", "table", "workshop_group", "error", err)
		return err
	}
	gr.log.Info("DeleteAll groups Successful :)")
	return nil
}
