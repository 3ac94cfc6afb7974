package repositories

import (
	"errors"
	"time"

	"converse/internal/enums"
	"converse/internal/errs"
	"converse/internal/models"
	"converse/internal/utils"

	"gorm.io/gorm"
)

var avatarColors = []string{
	"#e57373", "#64b5f6", "#81c784", "#ffd54f", "#ba68c8", "#4db6ac",
}

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{
		db: db,
	}
}

// FindOrCreateDirect returns the existing direct conversation for the exact
// participant pair and context, or creates it. Two concurrent create
// attempts converge on one row: the loser hits the unique index on
// participants_key and re-fetches the winner's conversation.
func (chr *ChatRepository) FindOrCreateDirect(participantIDs []uint, context string, creatorID uint) (*models.Conversation, []error) {
	var errList []error

	if len(participantIDs) != 2 || participantIDs[0] == participantIDs[1] {
		errList = append(errList, errs.ErrNotEnoughParticipants)
		return nil, errList
	}
	if context == "" {
		context = "general"
	}

	key := utils.ParticipantsKey(participantIDs, context)

	existing, err := chr.findDirectByKey(key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		errList = append(errList, err)
		return nil, errList
	}

	conversation := models.Conversation{
		Type:            enums.CONVERSATION_TYPE_DIRECT,
		Context:         context,
		AvatarColor:     pickAvatarColor(participantIDs),
		LastMessageAt:   time.Now().UTC(),
		ParticipantsKey: &key,
	}

	txErr := chr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversation).Error; err != nil {
			return err
		}
		for _, userID := range participantIDs {
			role := enums.PARTICIPANT_ROLE_MEMBER
			if userID == creatorID {
				role = enums.PARTICIPANT_ROLE_ADMIN
			}
			if err := tx.Create(&models.Participant{
				ConversationID: conversation.ID,
				UserID:         userID,
				Role:           role,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if txErr != nil {
		// The pair raced us to the same conversation. Treat the unique
		// violation as "already exists" and return the winner.
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			winner, err := chr.findDirectByKey(key)
			if err != nil {
				errList = append(errList, err)
				return nil, errList
			}
			return winner, nil
		}
		errList = append(errList, txErr)
		return nil, errList
	}

	return chr.getConversation(conversation.ID)
}

func (chr *ChatRepository) findDirectByKey(key string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := chr.db.
		Preload("Participants").
		Where("participants_key = ?", key).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateGroup always creates a new conversation, no dedup.
func (chr *ChatRepository) CreateGroup(participantIDs []uint, title *string, creatorID uint) (*models.Conversation, []error) {
	var errList []error

	unique := uniqueIDs(participantIDs)
	if len(unique) < 2 {
		errList = append(errList, errs.ErrNotEnoughParticipants)
		return nil, errList
	}

	conversation := models.Conversation{
		Type:          enums.CONVERSATION_TYPE_GROUP,
		Context:       "general",
		Title:         title,
		AvatarColor:   pickAvatarColor(unique),
		LastMessageAt: time.Now().UTC(),
	}

	txErr := chr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversation).Error; err != nil {
			return err
		}
		for _, userID := range unique {
			role := enums.PARTICIPANT_ROLE_MEMBER
			if userID == creatorID {
				role = enums.PARTICIPANT_ROLE_ADMIN
			}
			if err := tx.Create(&models.Participant{
				ConversationID: conversation.ID,
				UserID:         userID,
				Role:           role,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		errList = append(errList, txErr)
		return nil, errList
	}

	return chr.getConversation(conversation.ID)
}

func (chr *ChatRepository) getConversation(conversationID uint) (*models.Conversation, []error) {
	var errList []error
	var conversation models.Conversation
	if err := chr.db.
		Preload("Participants").
		First(&conversation, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errList = append(errList, errs.ErrConversationNotFound)
		} else {
			errList = append(errList, err)
		}
		return nil, errList
	}
	return &conversation, nil
}

// GetConversationResponse annotates a conversation with the caller's own
// unread count, pin flag and the latest non-deleted message.
func (chr *ChatRepository) GetConversationResponse(conversationID, userID uint) (*models.ConversationResponse, []error) {
	conversation, errList := chr.getConversation(conversationID)
	if len(errList) > 0 {
		return nil, errList
	}

	lastMessage, _ := chr.GetConversationLastMessage(conversationID)

	unread := 0
	isPinned := false
	if participant, err := chr.getParticipant(conversationID, userID); err == nil {
		unread = participant.UnreadCount
		isPinned = participant.IsPinned
	}

	response := conversation.ToConversationResponse(lastMessage, unread, isPinned)
	return &response, nil
}

// GetUserConversations lists the caller's conversations ordered by most
// recent activity, each with its last message and the caller's unread count.
func (chr *ChatRepository) GetUserConversations(userID uint, page, size int) (*models.ConversationListResponse, []error) {
	var errList []error
	var conversations []models.Conversation
	var total int64

	transactionErr := chr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Scopes(utils.Paginate(page, size)).
			Preload("Participants").
			Where("id IN (SELECT conversation_id FROM participants WHERE user_id = ? AND deleted_at IS NULL)", userID).
			Order("last_message_at DESC").
			Find(&conversations).Error; err != nil {
			return err
		}

		if err := tx.
			Model(&models.Conversation{}).
			Where("id IN (SELECT conversation_id FROM participants WHERE user_id = ? AND deleted_at IS NULL)", userID).
			Count(&total).Error; err != nil {
			return err
		}

		return nil
	})
	if transactionErr != nil {
		errList = append(errList, transactionErr)
		return nil, errList
	}

	conversationResponses := []models.ConversationResponse{}
	for _, conversation := range conversations {
		lastMessage, _ := chr.GetConversationLastMessage(conversation.ID)
		unread := 0
		isPinned := false
		for _, participant := range conversation.Participants {
			if participant.UserID == userID {
				unread = participant.UnreadCount
				isPinned = participant.IsPinned
			}
		}
		conversationResponses = append(conversationResponses, conversation.ToConversationResponse(lastMessage, unread, isPinned))
	}

	return &models.ConversationListResponse{
		Conversations: conversationResponses,
		Page:          page,
		Size:          size,
		Total:         total,
	}, nil
}

// AppendMessage persists the message, advances the conversation's
// last_message_at and increments every other participant's unread counter
// inside one transaction. The server-assigned timestamp is taken inside the
// transaction so commit order and timestamps cannot diverge.
func (chr *ChatRepository) AppendMessage(conversationID, senderID uint, content, messageType string, metadata models.JSONMap) (*models.Message, error) {
	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    messageType,
		Metadata:       metadata,
	}

	txErr := chr.db.Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := tx.First(&conversation, conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrConversationNotFound
			}
			return err
		}

		var memberCount int64
		if err := tx.Model(&models.Participant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, senderID).
			Count(&memberCount).Error; err != nil {
			return err
		}
		if memberCount == 0 {
			return errs.ErrNotParticipant
		}

		now := time.Now().UTC()
		message.CreatedAt = now
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		// Guarded so last_message_at never moves backwards under
		// concurrent sends committing out of timestamp order.
		if err := tx.Model(&models.Conversation{}).
			Where("id = ? AND last_message_at < ?", conversationID, now).
			Update("last_message_at", now).Error; err != nil {
			return err
		}

		// The sender's own message is pre-read.
		if err := tx.Model(&models.Participant{}).
			Where("conversation_id = ? AND user_id <> ?", conversationID, senderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error; err != nil {
			return err
		}

		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return message, nil
}

// GetMessages returns up to limit non-deleted messages strictly older than
// the cursor, newest first. Ties on created_at fall back to id so pages
// never overlap or skip rows.
func (chr *ChatRepository) GetMessages(conversationID uint, limit int, before *time.Time, beforeID uint) ([]models.Message, bool, error) {
	if limit < 1 {
		limit = 50
	}

	query := chr.db.
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false)

	if before != nil {
		if beforeID > 0 {
			query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", *before, *before, beforeID)
		} else {
			query = query.Where("created_at < ?", *before)
		}
	}

	var messages []models.Message
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&messages).Error; err != nil {
		return nil, false, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	return messages, hasMore, nil
}

func (chr *ChatRepository) GetConversationLastMessage(conversationID uint) (*models.Message, error) {
	var message models.Message
	if err := chr.db.
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC, id DESC").
		First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// SoftDeleteMessage flags the message deleted without shifting the ordering
// slot of its neighbours. Only the original sender may delete.
func (chr *ChatRepository) SoftDeleteMessage(messageID, requestingUserID uint) error {
	var message models.Message
	if err := chr.db.First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrMessageNotFound
		}
		return err
	}
	if message.SenderID != requestingUserID {
		return errs.ErrForbidden
	}
	return chr.db.Model(&message).Update("is_deleted", true).Error
}

// MarkRead moves the caller's read cursor to now and zeroes the unread
// counter. Idempotent.
func (chr *ChatRepository) MarkRead(conversationID, userID uint) error {
	participant, err := chr.getParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return chr.db.Model(participant).Updates(map[string]any{
		"last_read_at": now,
		"unread_count": 0,
	}).Error
}

func (chr *ChatRepository) UnreadCountFor(conversationID, userID uint) (int, error) {
	participant, err := chr.getParticipant(conversationID, userID)
	if err != nil {
		return 0, err
	}
	return participant.UnreadCount, nil
}

// TogglePin flips the caller's own pin flag and returns the new state.
func (chr *ChatRepository) TogglePin(conversationID, userID uint) (bool, error) {
	participant, err := chr.getParticipant(conversationID, userID)
	if err != nil {
		return false, err
	}
	pinned := !participant.IsPinned
	if err := chr.db.Model(participant).Update("is_pinned", pinned).Error; err != nil {
		return false, err
	}
	return pinned, nil
}

func (chr *ChatRepository) GetParticipants(conversationID uint) ([]models.Participant, error) {
	var participants []models.Participant
	if err := chr.db.
		Where("conversation_id = ?", conversationID).
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

func (chr *ChatRepository) getParticipant(conversationID, userID uint) (*models.Participant, error) {
	var participant models.Participant
	if err := chr.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotParticipant
		}
		return nil, err
	}
	return &participant, nil
}

func (chr *ChatRepository) CheckConversationExists(conversationID uint) bool {
	var count int64
	chr.db.Model(&models.Conversation{}).Where("id = ?", conversationID).Count(&count)
	return count > 0
}

func (chr *ChatRepository) CheckUserInConversation(userID, conversationID uint) bool {
	var count int64
	chr.db.Model(&models.Participant{}).Where("user_id = ? AND conversation_id = ?", userID, conversationID).Count(&count)
	return count > 0
}

func pickAvatarColor(participantIDs []uint) string {
	var sum uint
	for _, id := range participantIDs {
		sum += id
	}
	return avatarColors[sum%uint(len(avatarColors))]
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
