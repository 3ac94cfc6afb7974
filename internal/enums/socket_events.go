package enums

// Inbound socket events, sent by clients.
const (
	SOCKET_EVENT_JOIN_CONVERSATION  = "join_conversation"
	SOCKET_EVENT_LEAVE_CONVERSATION = "leave_conversation"
	SOCKET_EVENT_TYPING_START       = "typing_start"
	SOCKET_EVENT_TYPING_STOP        = "typing_stop"
)

// Outbound socket events, broadcast to rooms.
const (
	SOCKET_EVENT_NEW_MESSAGE          = "new_message"
	SOCKET_EVENT_USER_TYPING          = "user_typing"
	SOCKET_EVENT_USER_STOPPED_TYPING  = "user_stopped_typing"
	SOCKET_EVENT_CONVERSATION_UPDATED = "conversation_updated"
)
