package services

import (
	"log"
	"strings"

	"converse/internal/enums"
	"converse/internal/errs"
	"converse/internal/hub"
	"converse/internal/models"
	"converse/internal/repositories"
	socketModels "converse/internal/models/socket"
)

// Broadcaster is the live fan-out side of the delivery pipeline. In
// production it is the redis bridge; tests swap in a recorder.
type Broadcaster interface {
	Broadcast(room, event string, payload any) error
	BroadcastExcept(room, event string, payload any, excludeUserID uint) error
}

// Notifier queues the cross-conversation notification work that runs after
// a send commits.
type Notifier interface {
	EnqueueMessageNotification(message *models.Message) error
}

type ChatService struct {
	chatRepo    *repositories.ChatRepository
	broadcaster Broadcaster
	notifier    Notifier
}

func NewChatService(chatRepo *repositories.ChatRepository, broadcaster Broadcaster, notifier Notifier) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

// CreateConversation dispatches on type: direct conversations are
// deduplicated per participant pair and context, groups always create.
func (cs *ChatService) CreateConversation(creatorID uint, body *models.CreateConversationRequestBody) (*models.ConversationResponse, []error) {
	var conversation *models.Conversation
	var errList []error

	switch body.Type {
	case enums.CONVERSATION_TYPE_DIRECT:
		conversation, errList = cs.chatRepo.FindOrCreateDirect(body.Participants, body.Context, creatorID)
	case enums.CONVERSATION_TYPE_GROUP:
		conversation, errList = cs.chatRepo.CreateGroup(body.Participants, body.Title, creatorID)
	default:
		return nil, []error{errs.ErrInvalidConversationType}
	}

	if len(errList) > 0 {
		return nil, errList
	}
	return cs.chatRepo.GetConversationResponse(conversation.ID, creatorID)
}

func (cs *ChatService) ListConversations(userID uint, page, size int) (*models.ConversationListResponse, []error) {
	return cs.chatRepo.GetUserConversations(userID, page, size)
}

// SendMessage is the write-then-fan-out pipeline. The append and its unread
// side effects commit as one transaction; live delivery afterwards is best
// effort. A fan-out failure is logged and swallowed since the message is
// already durably visible and will surface on the next page fetch.
func (cs *ChatService) SendMessage(conversationID, senderID uint, request *models.MessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(request.Content)
	if content == "" {
		return nil, errs.ErrEmptyContent
	}
	messageType := request.MessageType
	if messageType == "" {
		messageType = enums.MESSAGE_TYPE_TEXT
	}

	message, err := cs.chatRepo.AppendMessage(conversationID, senderID, content, messageType, request.Metadata)
	if err != nil {
		return nil, err
	}

	room := hub.ConversationRoom(conversationID)
	if err := cs.broadcaster.Broadcast(room, enums.SOCKET_EVENT_NEW_MESSAGE, message); err != nil {
		log.Printf("SendMessage - %v: %v", errs.ErrDeliveryChannelUnavailable, err)
	}

	if cs.notifier != nil {
		if err := cs.notifier.EnqueueMessageNotification(message); err != nil {
			log.Printf("SendMessage - failed to enqueue notification: %v", err)
		}
	}

	return message, nil
}

// GetMessages returns one page of the conversation and, as a side effect,
// advances the caller's read cursor: fetching messages is reading them.
func (cs *ChatService) GetMessages(conversationID, userID uint, limit int, before *models.MessageCursor) (*models.MessageListResponse, error) {
	if !cs.chatRepo.CheckUserInConversation(userID, conversationID) {
		if !cs.chatRepo.CheckConversationExists(conversationID) {
			return nil, errs.ErrConversationNotFound
		}
		return nil, errs.ErrNotParticipant
	}

	var messages []models.Message
	var hasMore bool
	var err error
	if before != nil {
		messages, hasMore, err = cs.chatRepo.GetMessages(conversationID, limit, &before.CreatedAt, before.ID)
	} else {
		messages, hasMore, err = cs.chatRepo.GetMessages(conversationID, limit, nil, 0)
	}
	if err != nil {
		return nil, err
	}

	if err := cs.chatRepo.MarkRead(conversationID, userID); err != nil {
		log.Printf("GetMessages - failed to advance read cursor: %v", err)
	}

	return &models.MessageListResponse{
		Messages: messages,
		HasMore:  hasMore,
	}, nil
}

func (cs *ChatService) DeleteMessage(messageID, userID uint) error {
	return cs.chatRepo.SoftDeleteMessage(messageID, userID)
}

func (cs *ChatService) MarkRead(conversationID, userID uint) error {
	return cs.chatRepo.MarkRead(conversationID, userID)
}

func (cs *ChatService) UnreadCountFor(conversationID, userID uint) (int, error) {
	return cs.chatRepo.UnreadCountFor(conversationID, userID)
}

func (cs *ChatService) TogglePin(conversationID, userID uint) (bool, error) {
	return cs.chatRepo.TogglePin(conversationID, userID)
}

// StartTyping broadcasts an ephemeral typing signal to the conversation
// room, excluding every connection of the originator. Nothing is persisted;
// stale "still typing" state is the client's debounce problem.
func (cs *ChatService) StartTyping(conversationID, userID uint) {
	cs.signalTyping(conversationID, userID, enums.SOCKET_EVENT_USER_TYPING)
}

func (cs *ChatService) StopTyping(conversationID, userID uint) {
	cs.signalTyping(conversationID, userID, enums.SOCKET_EVENT_USER_STOPPED_TYPING)
}

func (cs *ChatService) signalTyping(conversationID, userID uint, event string) {
	payload := socketModels.TypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
	}
	room := hub.ConversationRoom(conversationID)
	if err := cs.broadcaster.BroadcastExcept(room, event, payload, userID); err != nil {
		log.Printf("signalTyping - %v: %v", errs.ErrDeliveryChannelUnavailable, err)
	}
}

func (cs *ChatService) CheckConversationExists(conversationID uint) bool {
	return cs.chatRepo.CheckConversationExists(conversationID)
}

func (cs *ChatService) CheckUserInConversation(userID, conversationID uint) bool {
	return cs.chatRepo.CheckUserInConversation(userID, conversationID)
}
