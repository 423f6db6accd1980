package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const StageOnboarding = "onboarding"

// ChatTurn is one entry of a participant's append-only transcript. The
// auto-increment ID is the canonical order.
type ChatTurn struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ParticipantID uuid.UUID `gorm:"type:uuid;index;not null;column:participant_id" json:"participantID"`
	Role          string    `gorm:"column:role;not null" json:"role"`
	Content       string    `gorm:"column:content;type:text;not null" json:"content"`
	Stage         string    `gorm:"column:stage;not null;default:onboarding" json:"stage"`
	CreatedAt     time.Time `gorm:"not null" json:"createdAt"`
}

func (ChatTurn) TableName() string {
	return "chat_turn"
}
