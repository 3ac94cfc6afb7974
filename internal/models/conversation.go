package models

import (
	"time"

	"gorm.io/gorm"
)

type Conversation struct {
	gorm.Model
	Type          string        `gorm:"not null" json:"type"`
	Context       string        `gorm:"not null;default:'general'" json:"context"`
	Title         *string       `json:"title"`
	AvatarColor   string        `json:"avatar_color"`
	LastMessageAt time.Time     `gorm:"index" json:"last_message_at"`
	// ParticipantsKey is only set for direct conversations. It is the sorted
	// participant id list plus the context, so the unique index collapses
	// concurrent create attempts for the same pair into one row.
	ParticipantsKey *string       `gorm:"uniqueIndex" json:"-"`
	Participants    []Participant `json:"participants"`
	Messages        []Message     `json:"-"`
}

func (conversation *Conversation) ToConversationResponse(lastMessage *Message, unread int, isPinned bool) ConversationResponse {
	participants := []ParticipantResponse{}
	for _, participant := range conversation.Participants {
		participants = append(participants, participant.ToParticipantResponse())
	}
	return ConversationResponse{
		ID:            conversation.ID,
		Type:          conversation.Type,
		Context:       conversation.Context,
		Title:         conversation.Title,
		AvatarColor:   conversation.AvatarColor,
		LastMessageAt: conversation.LastMessageAt,
		Participants:  participants,
		LastMessage:   lastMessage,
		Unread:        unread,
		IsPinned:      isPinned,
	}
}
