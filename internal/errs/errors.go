package errs

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrInvalidRequestBody         = Error("invalid request body")
	ErrInvalidParams              = Error("invalid params")
	ErrInvalidConversationId      = Error("invalid conversation id")
	ErrInvalidConversationType    = Error("invalid conversation type")
	ErrNotEnoughParticipants      = Error("a conversation needs at least two participants")
	ErrUnauthorized               = Error("unauthorized")
	ErrInvalidToken               = Error("invalid token")
	ErrNotParticipant             = Error("user is not a participant of the conversation")
	ErrConversationNotFound       = Error("conversation not found")
	ErrMessageNotFound            = Error("message not found")
	ErrForbidden                  = Error("operation forbidden")
	ErrParticipantAlreadyExists   = Error("participant already exists")
	ErrDeliveryChannelUnavailable = Error("delivery channel unavailable")
	ErrInvalidRequest             = Error("invalid request")
	ErrEmptyContent               = Error("message content is empty")
)
