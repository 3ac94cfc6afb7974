package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"converse/internal/enums"
	"converse/internal/errs"
	"converse/internal/hub"
	"converse/internal/models"
	socketModels "converse/internal/models/socket"
	"converse/internal/msgs"
	"converse/internal/services"
	"converse/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type SocketChatHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	chatService *services.ChatService
	jwtKey      []byte
}

func NewSocketChatHandler(hub *hub.Hub, chatService *services.ChatService, jwtKey []byte) *SocketChatHandler {
	return &SocketChatHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		hub:         hub,
		chatService: chatService,
		jwtKey:      jwtKey,
	}
}

func (sch *SocketChatHandler) HandleSocketRoute(ctx *gin.Context) {
	jwtToken := ctx.Query("token")
	if jwtToken == "" {
		jwtToken = ctx.GetHeader("Authorization")
	}
	if jwtToken == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.Response{
			Success: false,
			Message: msgs.MsgOperationFailed,
			Errors:  models.ErrorsToStrings([]error{errs.ErrUnauthorized}),
		})
		return
	}

	userInfo, err := utils.VerifyToken(jwtToken, sch.jwtKey)
	if err != nil || userInfo.ID == 0 {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.Response{
			Success: false,
			Message: msgs.MsgOperationFailed,
			Errors:  models.ErrorsToStrings([]error{errs.ErrUnauthorized}),
		})
		return
	}

	sch.handleConnection(ctx, userInfo)
}

func (sch *SocketChatHandler) handleConnection(ctx *gin.Context, userInfo *models.Claims) {
	ws, err := sch.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer func(ws *websocket.Conn) {
		if err := ws.Close(); err != nil {
			log.Printf("Error closing connection: %v", err)
		}
	}(ws)

	client := &hub.Client{
		UserID: userInfo.ID,
		Conn:   ws,
	}

	// Every connection sits in its owner's personal room so
	// cross-conversation notifications reach it without any explicit join.
	sch.hub.Join(client, hub.UserRoom(userInfo.ID))
	defer sch.hub.Disconnect(client)

	sch.readLoop(ws, client)
}

// readLoop dispatches inbound frames until the connection drops. Room
// membership dies with the connection; clients resubscribe and re-fetch on
// reconnect, nothing is replayed.
func (sch *SocketChatHandler) readLoop(ws *websocket.Conn, client *hub.Client) {
	for {
		var event socketModels.SocketEvent
		if err := ws.ReadJSON(&event); err != nil {
			log.Printf("Error reading json: %v", err)
			return
		}

		switch event.Event {
		case enums.SOCKET_EVENT_JOIN_CONVERSATION:
			sch.handleJoin(event.Payload, client)
		case enums.SOCKET_EVENT_LEAVE_CONVERSATION:
			sch.handleLeave(event.Payload, client)
		case enums.SOCKET_EVENT_TYPING_START:
			sch.handleTyping(event.Payload, client, true)
		case enums.SOCKET_EVENT_TYPING_STOP:
			sch.handleTyping(event.Payload, client, false)
		default:
			log.Printf("Unknown event: %v", event.Event)
		}
	}
}

// handleJoin verifies conversation membership before touching the room; the
// router itself performs no authorization.
func (sch *SocketChatHandler) handleJoin(payload json.RawMessage, client *hub.Client) {
	var join socketModels.JoinConversationPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		log.Printf("handleJoin - invalid payload: %v", err)
		return
	}
	if !sch.chatService.CheckConversationExists(join.ConversationID) {
		log.Printf("handleJoin - conversation %d does not exist", join.ConversationID)
		return
	}
	if !sch.chatService.CheckUserInConversation(client.UserID, join.ConversationID) {
		log.Printf("handleJoin - user %d is not in conversation %d", client.UserID, join.ConversationID)
		return
	}
	sch.hub.Join(client, hub.ConversationRoom(join.ConversationID))
}

func (sch *SocketChatHandler) handleLeave(payload json.RawMessage, client *hub.Client) {
	var leave socketModels.JoinConversationPayload
	if err := json.Unmarshal(payload, &leave); err != nil {
		log.Printf("handleLeave - invalid payload: %v", err)
		return
	}
	sch.hub.Leave(client, hub.ConversationRoom(leave.ConversationID))
}

func (sch *SocketChatHandler) handleTyping(payload json.RawMessage, client *hub.Client, start bool) {
	var typing socketModels.TypingPayload
	if err := json.Unmarshal(payload, &typing); err != nil {
		log.Printf("handleTyping - invalid payload: %v", err)
		return
	}
	if !sch.chatService.CheckUserInConversation(client.UserID, typing.ConversationID) {
		return
	}
	if start {
		sch.chatService.StartTyping(typing.ConversationID, client.UserID)
	} else {
		sch.chatService.StopTyping(typing.ConversationID, client.UserID)
	}
}
