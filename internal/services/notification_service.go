package services

import (
	"context"
	"encoding/json"
	"log"

	"converse/internal/enums"
	"converse/internal/hub"
	"converse/internal/models"
	socketModels "converse/internal/models/socket"
	"converse/internal/repositories"

	"github.com/hibiken/asynq"
)

const TypeMessageNotification = "notification:new_message"

type messageNotificationPayload struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
	SenderID       uint `json:"sender_id"`
}

// NotificationService enqueues post-send notification work so the send path
// never waits on it.
type NotificationService struct {
	client *asynq.Client
	queue  string
}

func NewNotificationService(redisAddr, queue string) *NotificationService {
	return &NotificationService{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		queue:  queue,
	}
}

func (ns *NotificationService) EnqueueMessageNotification(message *models.Message) error {
	payload, err := json.Marshal(messageNotificationPayload{
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		SenderID:       message.SenderID,
	})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeMessageNotification, payload)
	_, err = ns.client.Enqueue(task, asynq.Queue(ns.queue), asynq.MaxRetry(3))
	return err
}

func (ns *NotificationService) Close() error {
	return ns.client.Close()
}

// NotificationWorker consumes notification tasks and pushes a
// conversation_updated event to each recipient's personal room, so clients
// not currently inside the thread still see unread badges move.
type NotificationWorker struct {
	server      *asynq.Server
	chatRepo    *repositories.ChatRepository
	broadcaster Broadcaster
}

func NewNotificationWorker(redisAddr, queue string, concurrency int, chatRepo *repositories.ChatRepository, broadcaster Broadcaster) *NotificationWorker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{queue: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("notification task %s failed: %v", task.Type(), err)
			}),
		},
	)
	return &NotificationWorker{
		server:      server,
		chatRepo:    chatRepo,
		broadcaster: broadcaster,
	}
}

// Run starts the worker loop. Call it from its own goroutine; it blocks
// until Shutdown.
func (nw *NotificationWorker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMessageNotification, nw.handleMessageNotification)
	return nw.server.Run(mux)
}

func (nw *NotificationWorker) Shutdown() {
	nw.server.Shutdown()
}

func (nw *NotificationWorker) handleMessageNotification(ctx context.Context, task *asynq.Task) error {
	var payload messageNotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	participants, err := nw.chatRepo.GetParticipants(payload.ConversationID)
	if err != nil {
		return err
	}

	for _, participant := range participants {
		if participant.UserID == payload.SenderID {
			continue
		}
		event := socketModels.ConversationUpdatedPayload{
			ConversationID: payload.ConversationID,
			MessageID:      payload.MessageID,
			SenderID:       payload.SenderID,
			Unread:         participant.UnreadCount,
		}
		room := hub.UserRoom(participant.UserID)
		if err := nw.broadcaster.Broadcast(room, enums.SOCKET_EVENT_CONVERSATION_UPDATED, event); err != nil {
			log.Printf("handleMessageNotification - broadcast to %s failed: %v", room, err)
		}
	}

	return nil
}
