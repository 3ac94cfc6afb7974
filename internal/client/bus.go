// Package client is the connection-side counterpart of the delivery
// pipeline: it keeps a local timeline per open conversation, renders sends
// optimistically and reconciles them against server-confirmed messages.
package client

import (
	"sync"

	"converse/internal/models"
	socketModels "converse/internal/models/socket"
)

type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventNewMessage
	EventUserTyping
	EventUserStoppedTyping
	EventConversationUpdated
)

type Event struct {
	Kind               EventKind
	Message            *models.Message
	Typing             *socketModels.TypingPayload
	ConversationUpdate *socketModels.ConversationUpdatedPayload
}

type Handler func(Event)

// Bus is a typed publish/subscribe fan-out keyed by event kind. Subscribe
// hands back an explicit unsubscribe handle so callers do not have to keep
// the handler reference around for removal.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[EventKind]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventKind]map[int]Handler),
	}
}

type Subscription struct {
	bus  *Bus
	kind EventKind
	id   int
	once sync.Once
}

func (b *Bus) Subscribe(kind EventKind, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[kind]; !ok {
		b.handlers[kind] = make(map[int]Handler)
	}
	b.nextID++
	b.handlers[kind][b.nextID] = handler
	return &Subscription{
		bus:  b,
		kind: kind,
		id:   b.nextID,
	}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		delete(s.bus.handlers[s.kind], s.id)
	})
}

// Publish invokes every handler subscribed to the event's kind. Handlers
// run outside the bus lock so they may subscribe or unsubscribe freely.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.handlers[event.Kind]))
	for _, handler := range b.handlers[event.Kind] {
		handlers = append(handlers, handler)
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}
