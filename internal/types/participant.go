package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is one workshop attendee, addressed externally by Token.
// SessionID is stamped at creation and never changed afterwards.
type Participant struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Token          string     `gorm:"uniqueIndex;not null;column:token" json:"token"`
	Name           string     `gorm:"column:name;size:120" json:"name"`
	CreativeRole   string     `gorm:"column:creative_role;size:200" json:"creativeRole"`
	SessionID      *string    `gorm:"index;column:session_id" json:"sessionID,omitempty"`
	CurrentGroupID *uuid.UUID `gorm:"type:uuid;index;column:current_group_id" json:"currentGroupID,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Participant) TableName() string {
	return "participant"
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Eligible reports whether the participant can be placed into a group.
func (p *Participant) Eligible() bool {
	return p.Name != "" && p.CreativeRole != ""
}
