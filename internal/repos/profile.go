package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type ProfileRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, profile *types.ParticipantProfile, overwrite bool) error
	SetEmbedding(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, embedding datatypes.JSON) error
	GetByParticipantID(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*types.ParticipantProfile, error)
	GetByParticipantIDs(ctx context.Context, tx *gorm.DB, participantIDs []uuid.UUID) ([]*types.ParticipantProfile, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*types.ParticipantProfile, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ParticipantProfile, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{
		db:  db,
		log: baseLog.With("repo", "ProfileRepo"),
	}
}

// Upsert creates the participant's profile. When one already exists the
// needs summary is replaced only if overwrite is set.
func (pr *profileRepo) Upsert(ctx context.Context, tx *gorm.DB, profile *types.ParticipantProfile, overwrite bool) error {
	if tx == nil {
		tx = pr.db
	}
	conflict := clause.OnConflict{Columns: []clause.Column{{Name: "participant_id"}}}
	if overwrite {
		conflict.DoUpdates = clause.Assignments(map[string]interface{}{
			"needs_summary": profile.NeedsSummary,
			"updated_at":    time.Now(),
		})
	} else {
		conflict.DoNothing = true
	}
	if err := tx.WithContext(ctx).Clauses(conflict).Create(profile).Error; err != nil {
		pr.log.Error("Failed to upsert participant profile", "participantID", profile.ParticipantID, "error", err)
		return err
	}
	return nil
}

func (pr *profileRepo) SetEmbedding(ctx context.Context, tx *gorm.DB, participantID uuid.UUID, embedding datatypes.JSON) error {
	if tx == nil {
		tx = pr.db
	}
	if err := tx.WithContext(ctx).
		Model(&types.ParticipantProfile{}).
		Where("participant_id = ?", participantID).
		Update("embedding", embedding).Error; err != nil {
		pr.log.Error("Failed to store profile embedding", "participantID", participantID, "error", err)
		return err
	}
	return nil
}

// GetByParticipantID returns nil, nil when the participant has no profile.
func (pr *profileRepo) GetByParticipantID(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*types.ParticipantProfile, error) {
	if tx == nil {
		tx = pr.db
	}
	var profile types.ParticipantProfile
	err := tx.WithContext(ctx).Where("participant_id = ?", participantID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		pr.log.Error("Failed to get participant profile", "participantID", participantID, "error", err)
		return nil, err
	}
	return &profile, nil
}

func (pr *profileRepo) GetByParticipantIDs(ctx context.Context, tx *gorm.DB, participantIDs []uuid.UUID) ([]*types.ParticipantProfile, error) {
	if tx == nil {
		tx = pr.db
	}
	var profiles []*types.ParticipantProfile
	if len(participantIDs) == 0 {
		return profiles, nil
	}
	if err := tx.WithContext(ctx).Where("participant_id IN ?", participantIDs).Find(&profiles).Error; err != nil {
		pr.log.Error("Failed to get participant profiles", "error", err)
		return nil, err
	}
	return profiles, nil
}

func (pr *profileRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*types.ParticipantProfile, error) {
	if tx == nil {
		tx = pr.db
	}
	var profiles []*types.ParticipantProfile
	if err := tx.WithContext(ctx).
		Joins("JOIN participant ON participant.id = participant_profile.participant_id").
		Scopes(sessionScope("participant.session_id", sessionID)).
		Order("participant_profile.created_at ASC").
		Find(&profiles).Error; err != nil {
		pr.log.Error("Failed to list profiles by session", "sessionID", sessionID, "error", err)
		return nil, err
	}
	return profiles, nil
}

func (pr *profileRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ParticipantProfile, error) {
	if tx == nil {
		tx = pr.db
	}
	var profiles []*types.ParticipantProfile
	if err := tx.WithContext(ctx).Order("created_at ASC").Find(&profiles).Error; err != nil {
		pr.log.Error("Failed to list profiles", "error", err)
		return nil, err
	}
	return profiles, nil
}
