package client

import (
	"errors"
	"testing"
	"time"

	"converse/internal/models"

	"gorm.io/gorm"
)

// echoSend fabricates the server side of a send: it assigns an id and
// echoes the request metadata back, the way the repository stores it.
func echoSend(startID uint) SendFunc {
	nextID := startID
	return func(conversationID uint, request *models.MessageRequest) (*models.Message, error) {
		message := &models.Message{
			Model:          gorm.Model{ID: nextID, CreatedAt: time.Now()},
			ConversationID: conversationID,
			SenderID:       1,
			Content:        request.Content,
			Metadata:       request.Metadata,
		}
		nextID++
		return message, nil
	}
}

func newTestSession(t *testing.T, send SendFunc) (*Session, *Bus) {
	t.Helper()
	bus := NewBus()
	manager := NewManager(func() (Conn, error) { return nil, errors.New("offline") }, bus)
	return NewSession(1, manager, bus, send), bus
}

func TestSessionSendConfirmsOptimisticEcho(t *testing.T) {
	session, _ := newTestSession(t, echoSend(42))
	defer session.Close()

	timeline, err := session.Open(10)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	message, err := session.Send(10, "lunch?")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if message.ID != 42 {
		t.Fatalf("expected server id 42, got %d", message.ID)
	}

	rendered := timeline.Messages()
	if len(rendered) != 1 || rendered[0].ID != 42 {
		t.Fatalf("expected the confirmed message rendered once, got %+v", rendered)
	}
	if timeline.PendingCount() != 0 {
		t.Fatal("echo survived a successful send")
	}
}

func TestSessionSendFailureRemovesEchoAndSurfacesError(t *testing.T) {
	sendErr := errors.New("content must not be empty")
	session, _ := newTestSession(t, func(uint, *models.MessageRequest) (*models.Message, error) {
		return nil, sendErr
	})
	defer session.Close()

	timeline, err := session.Open(10)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := session.Send(10, "   "); !errors.Is(err, sendErr) {
		t.Fatalf("expected the send error surfaced, got %v", err)
	}
	if len(timeline.Messages()) != 0 || timeline.PendingCount() != 0 {
		t.Fatal("failed echo still rendered")
	}
}

func TestSessionRoutesBroadcastsToTheOpenTimeline(t *testing.T) {
	session, bus := newTestSession(t, echoSend(1))
	defer session.Close()

	timeline, err := session.Open(10)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	bus.Publish(Event{Kind: EventNewMessage, Message: &models.Message{
		Model:          gorm.Model{ID: 7, CreatedAt: time.Now()},
		ConversationID: 10,
		SenderID:       2,
		Content:        "hello",
	}})
	// A message for a conversation this session never opened is ignored.
	bus.Publish(Event{Kind: EventNewMessage, Message: &models.Message{
		Model:          gorm.Model{ID: 8, CreatedAt: time.Now()},
		ConversationID: 99,
		SenderID:       2,
		Content:        "elsewhere",
	}})

	rendered := timeline.Messages()
	if len(rendered) != 1 || rendered[0].ID != 7 {
		t.Fatalf("expected only the open conversation's message, got %+v", rendered)
	}
}

func TestSessionDropsOwnRacingBroadcast(t *testing.T) {
	var bus *Bus
	// The room fan-out lands before the send response does.
	send := func(conversationID uint, request *models.MessageRequest) (*models.Message, error) {
		message := &models.Message{
			Model:          gorm.Model{ID: 42, CreatedAt: time.Now()},
			ConversationID: conversationID,
			SenderID:       1,
			Content:        request.Content,
			Metadata:       request.Metadata,
		}
		bus.Publish(Event{Kind: EventNewMessage, Message: message})
		return message, nil
	}

	session, busHandle := newTestSession(t, send)
	bus = busHandle
	defer session.Close()

	timeline, err := session.Open(10)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := session.Send(10, "lunch?"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	rendered := timeline.Messages()
	if len(rendered) != 1 {
		t.Fatalf("racing broadcast duplicated the message: %+v", rendered)
	}
	if rendered[0].ID != 42 {
		t.Fatalf("expected the confirmed message, got id %d", rendered[0].ID)
	}
}

func TestSessionLeaveStopsTracking(t *testing.T) {
	session, bus := newTestSession(t, echoSend(1))
	defer session.Close()

	timeline, err := session.Open(10)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := session.Leave(10); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	bus.Publish(Event{Kind: EventNewMessage, Message: &models.Message{
		Model:          gorm.Model{ID: 7, CreatedAt: time.Now()},
		ConversationID: 10,
		SenderID:       2,
	}})
	if len(timeline.Messages()) != 0 {
		t.Fatal("left conversation still receives broadcasts")
	}
}

func TestSessionReconcileMergesFetchedPage(t *testing.T) {
	session, _ := newTestSession(t, echoSend(42))
	defer session.Close()

	timeline, err := session.Open(10)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := session.Send(10, "mine"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	base := time.Now().Add(-time.Minute)
	session.Reconcile(10, []models.Message{
		{Model: gorm.Model{ID: 1, CreatedAt: base}, ConversationID: 10, SenderID: 2, Content: "earlier"},
	})

	rendered := timeline.Messages()
	if len(rendered) != 2 {
		t.Fatalf("expected 2 messages after reconcile, got %d", len(rendered))
	}
	if rendered[0].Content != "earlier" || rendered[1].Content != "mine" {
		t.Fatalf("unexpected order: %v", []string{rendered[0].Content, rendered[1].Content})
	}
}
