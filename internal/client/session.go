package client

import (
	"sync"

	"converse/internal/models"
)

// SendFunc performs the durable send call against the delivery coordinator
// (over REST in production) and returns the server-confirmed message.
type SendFunc func(conversationID uint, request *models.MessageRequest) (*models.Message, error)

// Session binds the connection manager, the event bus and one timeline per
// open conversation into the reconciliation behavior the UI consumes.
type Session struct {
	selfID  uint
	manager *Manager
	bus     *Bus
	send    SendFunc

	mu        sync.Mutex
	timelines map[uint]*Timeline
	subs      []*Subscription
}

func NewSession(selfUserID uint, manager *Manager, bus *Bus, send SendFunc) *Session {
	session := &Session{
		selfID:    selfUserID,
		manager:   manager,
		bus:       bus,
		send:      send,
		timelines: make(map[uint]*Timeline),
	}
	session.subs = append(session.subs,
		bus.Subscribe(EventNewMessage, session.onNewMessage),
	)
	return session
}

// Open starts tracking a conversation: it creates the local timeline and
// subscribes the connection to the conversation's room.
func (s *Session) Open(conversationID uint) (*Timeline, error) {
	s.mu.Lock()
	timeline, ok := s.timelines[conversationID]
	if !ok {
		timeline = NewTimeline(s.selfID)
		s.timelines[conversationID] = timeline
	}
	s.mu.Unlock()

	if err := s.manager.JoinConversation(conversationID); err != nil {
		return timeline, err
	}
	return timeline, nil
}

func (s *Session) Leave(conversationID uint) error {
	s.mu.Lock()
	delete(s.timelines, conversationID)
	s.mu.Unlock()
	return s.manager.LeaveConversation(conversationID)
}

// Send renders the optimistic echo, performs the durable call, and
// reconciles: success replaces the echo with the confirmed message, failure
// removes the echo and returns the error for the UI to surface. No silent
// retry either way.
func (s *Session) Send(conversationID uint, content string) (*models.Message, error) {
	timeline := s.timeline(conversationID)
	tempID := timeline.AppendPending(conversationID, content)

	message, err := s.send(conversationID, &models.MessageRequest{
		Content:  content,
		Metadata: models.JSONMap{MetadataTempID: tempID},
	})
	if err != nil {
		timeline.FailPending(tempID)
		return nil, err
	}

	timeline.ConfirmPending(tempID, *message)
	return message, nil
}

// Reconcile merges a freshly fetched page into the conversation's timeline,
// typically right after EventConnected.
func (s *Session) Reconcile(conversationID uint, page []models.Message) {
	s.timeline(conversationID).MergePage(page)
}

func (s *Session) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.manager.Dispose()
}

func (s *Session) onNewMessage(event Event) {
	if event.Message == nil {
		return
	}
	s.mu.Lock()
	timeline, ok := s.timelines[event.Message.ConversationID]
	s.mu.Unlock()
	if !ok {
		return
	}
	timeline.ApplyBroadcast(*event.Message)
}

func (s *Session) timeline(conversationID uint) *Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	timeline, ok := s.timelines[conversationID]
	if !ok {
		timeline = NewTimeline(s.selfID)
		s.timelines[conversationID] = timeline
	}
	return timeline
}
