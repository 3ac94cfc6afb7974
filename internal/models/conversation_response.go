package models

import "time"

type ConversationResponse struct {
	ID            uint                  `json:"id"`
	Type          string                `json:"type"`
	Context       string                `json:"context"`
	Title         *string               `json:"title"`
	AvatarColor   string                `json:"avatar_color"`
	LastMessageAt time.Time             `json:"last_message_at"`
	Participants  []ParticipantResponse `json:"participants"`
	LastMessage   *Message              `json:"last_message"`
	Unread        int                   `json:"unread"`
	IsPinned      bool                  `json:"is_pinned"`
}

type ParticipantResponse struct {
	UserID   uint      `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
