package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type ParticipantRepo interface {
	// CREATE
	Create(ctx context.Context, tx *gorm.DB, participants []*types.Participant) ([]*types.Participant, error)

	// READ
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.Participant, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Participant, error)
	ListEligible(ctx context.Context, tx *gorm.DB, sessionID string) ([]*types.Participant, error)
	ListWithUserTurns(ctx context.Context, tx *gorm.DB, sessionID string) ([]*types.Participant, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Participant, error)

	// UPDATE
	FillIdentity(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, name, creativeRole string) error
	SetCurrentGroup(ctx context.Context, tx *gorm.DB, participantIDs []uuid.UUID, groupID uuid.UUID) error
	ClearCurrentGroups(ctx context.Context, tx *gorm.DB) error
}

type participantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParticipantRepo(db *gorm.DB, baseLog *logger.Logger) ParticipantRepo {
	repoLog := baseLog.With("repo", "ParticipantRepo")
	return &participantRepo{db: db, log: repoLog}
}

// sessionScope filters by session id. An empty id matches every row.
func sessionScope(column, sessionID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if sessionID == "" {
			return db
		}
		return db.Where(column+" = ?", sessionID)
	}
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (pr *participantRepo) Create(ctx context.Context, tx *gorm.DB, participants []*types.Participant) ([]*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(participants) == 0 {
		return []*types.Participant{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&participants).Error; err != nil {
		pr.log.Error("Failed to create participants", "error", err)
		return nil, err
	}
	pr.log.Debug("Created participants", "count", len(participants))
	return participants, nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

// GetByToken returns nil, nil when no participant has the token.
func (pr *participantRepo) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participant types.Participant
	err := transaction.WithContext(ctx).Where("token = ?", token).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		pr.log.Error("Failed to get participant by token", "error", err)
		return nil, err
	}
	return &participant, nil
}

func (pr *participantRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participants []*types.Participant
	if len(ids) == 0 {
		return participants, nil
	}
	if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&participants).Error; err != nil {
		pr.log.Error("Failed to get participants by ids", "error", err)
		return nil, err
	}
	return participants, nil
}

// ListEligible returns participants with both name and creative role set, in
// arrival order.
func (pr *participantRepo) ListEligible(ctx context.Context, tx *gorm.DB, sessionID string) ([]*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participants []*types.Participant
	if err := transaction.WithContext(ctx).
		Scopes(sessionScope("session_id", sessionID)).
		Where("name <> '' AND creative_role <> ''").
		Order("created_at ASC").
		Find(&participants).Error; err != nil {
		pr.log.Error("Failed to list eligible participants", "error", err)
		return nil, err
	}
	return participants, nil
}

// ListWithUserTurns returns participants that have sent at least one message,
// newest first.
func (pr *participantRepo) ListWithUserTurns(ctx context.Context, tx *gorm.DB, sessionID string) ([]*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participants []*types.Participant
	if err := transaction.WithContext(ctx).
		Scopes(sessionScope("session_id", sessionID)).
		Where("EXISTS (SELECT 1 FROM chat_turn WHERE chat_turn.participant_id = participant.id AND chat_turn.role = ?)", types.RoleUser).
		Order("created_at DESC").
		Find(&participants).Error; err != nil {
		pr.log.Error("Failed to list participants with user turns", "error", err)
		return nil, err
	}
	return participants, nil
}

func (pr *participantRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var participants []*types.Participant
	if err := transaction.WithContext(ctx).Order("created_at ASC").Find(&participants).Error; err != nil {
		pr.log.Error("Failed to list participants", "error", err)
		return nil, err
	}
	return participants, nil
}

// ----------------------------------------------------------------
// UPDATE
// ----------------------------------------------------------------

// FillIdentity writes name and creative role only where the stored column is
// still empty. Empty arguments are ignored.
func (pr *participantRepo) FillIdentity(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, name, creativeRole string) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if name != "" {
		if err := transaction.WithContext(ctx).
			Model(&types.Participant{}).
			Where("id = ? AND (name = '' OR name IS NULL)", participantID).
			Update("name", name).Error; err != nil {
			pr.log.Error("Failed to fill participant name", "error", err)
			return err
		}
	}
	if creativeRole != "" {
		if err := transaction.WithContext(ctx).
			Model(&types.Participant{}).
			Where("id = ? AND (creative_role = '' OR creative_role IS NULL)", participantID).
			Update("creative_role", creativeRole).Error; err != nil {
			pr.log.Error("Failed to fill participant creative role", "error", err)
			return err
		}
	}
	return nil
}

func (pr *participantRepo) SetCurrentGroup(ctx context.Context, tx *gorm.DB, participantIDs []uuid.UUID, groupID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(participantIDs) == 0 {
		return nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Participant{}).
		Where("id IN ?", participantIDs).
		Update("current_group_id", groupID).Error; err != nil {
		pr.log.Error("Failed to set current group", "groupID", groupID, "error", err)
		return err
	}
	return nil
}

func (pr *participantRepo) ClearCurrentGroups(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Participant{}).
		Where("current_group_id IS NOT NULL").
		Update("current_group_id", nil).Error; err != nil {
		pr.log.Error("Failed to clear current groups", "error", err)
		return err
	}
	return nil
}
