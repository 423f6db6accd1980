package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is one triad of the current grouping epoch. Number is 1-based and
// follows the order the grouping run produced.
type Group struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Number    int            `gorm:"uniqueIndex;not null;column:number" json:"number"`
	Name      string         `gorm:"index;not null;column:name" json:"name"`
	Rationale string         `gorm:"column:rationale;type:text" json:"rationale"`
	Members   []*GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (Group) TableName() string {
	return "workshop_group"
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GroupMember joins a participant to a group. ParticipantID is unique, so a
// participant belongs to at most one group per epoch.
type GroupMember struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID       uuid.UUID    `gorm:"type:uuid;index;not null;column:group_id" json:"groupID"`
	ParticipantID uuid.UUID    `gorm:"type:uuid;uniqueIndex;not null;column:participant_id" json:"participantID"`
	Position      int          `gorm:"column:position;not null;default:0" json:"position"`
	Participant   *Participant `gorm:"foreignKey:ParticipantID;references:ID" json:"participant,omitempty"`
}

func (GroupMember) TableName() string {
	return "group_member"
}

func (gm *GroupMember) BeforeCreate(tx *gorm.DB) error {
	if gm.ID == uuid.Nil {
		gm.ID = uuid.New()
	}
	return nil
}

// GroupChat is one entry of a group's shared transcript.
type GroupChat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID   uuid.UUID `gorm:"type:uuid;index;not null;column:group_id" json:"groupID"`
	Role      string    `gorm:"column:role;not null" json:"role"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (GroupChat) TableName() string {
	return "group_chat"
}
