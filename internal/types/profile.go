package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ParticipantProfile holds the concluding needs summary. The structured
// fields are placeholders that extraction does not populate yet.
type ParticipantProfile struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ParticipantID uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null;column:participant_id" json:"participantID"`
	NeedsSummary  string         `gorm:"column:needs_summary;type:text" json:"needsSummary"`
	CurrentUses   datatypes.JSON `gorm:"column:current_uses" json:"currentUses,omitempty"`
	WantToLearn   datatypes.JSON `gorm:"column:want_to_learn" json:"wantToLearn,omitempty"`
	Blockers      datatypes.JSON `gorm:"column:blockers" json:"blockers,omitempty"`
	Embedding     datatypes.JSON `gorm:"column:embedding" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (ParticipantProfile) TableName() string {
	return "participant_profile"
}

func (pp *ParticipantProfile) BeforeCreate(tx *gorm.DB) error {
	if pp.ID == uuid.Nil {
		pp.ID = uuid.New()
	}
	return nil
}
