package models

const REDIS_CHANNEL_CHAT = "chat_events"

// RedisPublishedEvent is the envelope every live event travels in between
// processes. Room addresses the hub-side subscription scope; ExcludeUserID,
// when non-zero, keeps the event away from every connection of that user.
type RedisPublishedEvent struct {
	Event         string `json:"event"`
	Room          string `json:"room"`
	Payload       any    `json:"payload"`
	ExcludeUserID uint   `json:"exclude_user_id,omitempty"`
}
