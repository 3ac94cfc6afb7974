package enums

const (
	CONVERSATION_TYPE_DIRECT = "direct"
	CONVERSATION_TYPE_GROUP  = "group"
)

const (
	PARTICIPANT_ROLE_ADMIN  = "admin"
	PARTICIPANT_ROLE_MEMBER = "member"
)

const (
	MESSAGE_TYPE_TEXT = "text"
)
