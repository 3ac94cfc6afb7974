package models

import (
	"time"

	"gorm.io/gorm"
)

// Participant maps one user into one conversation and carries that user's
// read cursor and pin state. The unique index keeps one row per
// (conversation, user) pair.
type Participant struct {
	gorm.Model
	ConversationID uint       `gorm:"uniqueIndex:idx_conversation_user" json:"conversation_id"`
	UserID         uint       `gorm:"uniqueIndex:idx_conversation_user" json:"user_id"`
	Role           string     `gorm:"not null;default:'member'" json:"role"`
	IsPinned       bool       `gorm:"not null;default:false" json:"is_pinned"`
	LastReadAt     *time.Time `json:"last_read_at"`
	UnreadCount    int        `gorm:"not null;default:0" json:"unread_count"`
}

func (participant *Participant) ToParticipantResponse() ParticipantResponse {
	return ParticipantResponse{
		UserID:   participant.UserID,
		Role:     participant.Role,
		JoinedAt: participant.CreatedAt,
	}
}
