package models

import (
	"encoding/json"
)

// SocketEvent is the inbound client frame. Payload stays raw until the
// handler dispatches on Event.
type SocketEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// SocketEnvelope is the outbound frame written to room members.
type SocketEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type JoinConversationPayload struct {
	ConversationID uint `json:"conversation_id"`
}

type TypingPayload struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

type ConversationUpdatedPayload struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
	SenderID       uint `json:"sender_id"`
	Unread         int  `json:"unread"`
}
