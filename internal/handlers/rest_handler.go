package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"converse/internal/errs"
	"converse/internal/models"
	"converse/internal/msgs"
	"converse/internal/services"

	"github.com/gin-gonic/gin"
)

type RestHandler struct {
	chatService *services.ChatService
	jwtKey      []byte
}

func NewRestHandler(chatService *services.ChatService, jwtKey []byte) *RestHandler {
	return &RestHandler{
		chatService: chatService,
		jwtKey:      jwtKey,
	}
}

func (rh *RestHandler) ListConversations(ctx *gin.Context) {
	userID := ctx.GetUint("user_id")
	page, size := paginationParams(ctx)

	response, errList := rh.chatService.ListConversations(userID, page, size)
	if len(errList) > 0 {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: msgs.MsgOperationFailed,
			Errors:  models.ErrorsToStrings(errList),
		})
		return
	}

	ctx.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: msgs.MsgOperationSuccessful,
		Data:    response,
	})
}

func (rh *RestHandler) CreateConversation(ctx *gin.Context) {
	userID := ctx.GetUint("user_id")

	var body models.CreateConversationRequestBody
	if err := ctx.BindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: msgs.MsgOperationFailed,
			Errors:  models.ErrorsToStrings([]error{errs.ErrInvalidRequestBody}),
		})
		return
	}

	conversation, errList := rh.chatService.CreateConversation(userID, &body)
	if len(errList) > 0 {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: msgs.MsgOperationFailed,
			Errors:  models.ErrorsToStrings(errList),
		})
		return
	}

	ctx.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: msgs.MsgOperationSuccessful,
		Data:    conversation,
	})
}

// GetMessages returns one descending page and advances the caller's read
// cursor as a side effect.
func (rh *RestHandler) GetMessages(ctx *gin.Context) {
	userID := ctx.GetUint("user_id")

	conversationID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var cursor *models.MessageCursor
	if raw := ctx.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, models.Response{
				Success: false,
				Message: msgs.MsgOperationFailed,
				Errors:  models.ErrorsToStrings([]error{errs.ErrInvalidParams}),
			})
			return
		}
		cursor = &models.MessageCursor{CreatedAt: before}
		if rawID := ctx.Query("before_id"); rawID != "" {
			if parsed, err := strconv.Atoi(rawID); err == nil && parsed > 0 {
				cursor.ID = uint(parsed)
			}
		}
	}

	response, err := rh.chatService.GetMessages(conversationID, userID, limit, cursor)
	if err != nil {
		rh.abortWithDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: msgs.MsgOperationSuccessful,
		Data:    response,
	})
}

func (rh *RestHandler) SendMessage(ctx *gin.Context) {
	userID := ctx.GetUint("user_id")

	conversationID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	var request models.MessageRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: msgs.MsgOperationFailed,
			Errors:  models.ErrorsToStrings([]error{errs.ErrInvalidRequestBody}),
		})
		return
	}

	message, err := rh.chatService.SendMessage(conversationID, userID, &request)
	if err != nil {
		rh.abortWithDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: msgs.MsgOperationSuccessful,
		Data:    message,
	})
}

func (rh *RestHandler) DeleteMessage(ctx *gin.Context) {
	userID := ctx.GetUint("user_id")

	messageID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	if err := rh.chatService.DeleteMessage(messageID, userID); err != nil {
		rh.abortWithDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: msgs.MsgMessageDeleted,
	})
}

func (rh *RestHandler) TogglePin(ctx *gin.Context) {
	userID := ctx.GetUint("user_id")

	conversationID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	pinned, err := rh.chatService.TogglePin(conversationID, userID)
	if err != nil {
		rh.abortWithDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: msgs.MsgOperationSuccessful,
		Data:    gin.H{"is_pinned": pinned},
	})
}

func (rh *RestHandler) abortWithDomainError(ctx *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, errs.ErrConversationNotFound), errors.Is(err, errs.ErrMessageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden), errors.Is(err, errs.ErrNotParticipant):
		status = http.StatusForbidden
	}
	ctx.AbortWithStatusJSON(status, models.Response{
		Success: false,
		Message: msgs.MsgOperationFailed,
		Errors:  models.ErrorsToStrings([]error{err}),
	})
}

func uintParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: msgs.MsgOperationFailed,
			Errors:  models.ErrorsToStrings([]error{errs.ErrInvalidParams}),
		})
		return 0, false
	}
	return uint(parsed), true
}

func paginationParams(ctx *gin.Context) (int, int) {
	page, err := strconv.Atoi(ctx.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(ctx.Query("size"))
	if err != nil || size < 1 {
		size = 10
	}
	return page, size
}
