package client

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"converse/internal/enums"
	"converse/internal/models"
	socketModels "converse/internal/models/socket"

	"github.com/gorilla/websocket"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// Conn is a bidirectional socket. *websocket.Conn satisfies it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

type DialFunc func() (Conn, error)

// WebsocketDial dials the server's /ws endpoint with the bearer token in
// the query string.
func WebsocketDial(url, token string) DialFunc {
	return func() (Conn, error) {
		conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", url, token), nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Manager owns one logical server connection and its explicit lifecycle:
// disconnected -> connecting -> connected, back to disconnected on read
// failure or Dispose. It remembers which conversation rooms the session had
// open and rejoins them all on every successful connect, since the server
// replays nothing.
type Manager struct {
	mu       sync.Mutex
	state    State
	conn     Conn
	dial     DialFunc
	bus      *Bus
	joined   map[uint]struct{}
	disposed bool
}

func NewManager(dial DialFunc, bus *Bus) *Manager {
	return &Manager{
		state:  StateDisconnected,
		dial:   dial,
		bus:    bus,
		joined: make(map[uint]struct{}),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials, resubscribes every previously-open room, then announces
// EventConnected so owners re-fetch the newest page and reconcile.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return fmt.Errorf("manager is disposed")
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.dial()
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	rooms := make([]uint, 0, len(m.joined))
	for conversationID := range m.joined {
		rooms = append(rooms, conversationID)
	}
	m.mu.Unlock()

	for _, conversationID := range rooms {
		if err := m.sendEvent(enums.SOCKET_EVENT_JOIN_CONVERSATION, socketModels.JoinConversationPayload{ConversationID: conversationID}); err != nil {
			log.Printf("Connect - rejoin of conversation %d failed: %v", conversationID, err)
		}
	}

	m.bus.Publish(Event{Kind: EventConnected})

	go m.readLoop(conn)
	return nil
}

// JoinConversation records the room for reconnect resubscription and joins
// it immediately when connected.
func (m *Manager) JoinConversation(conversationID uint) error {
	m.mu.Lock()
	m.joined[conversationID] = struct{}{}
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		return nil
	}
	return m.sendEvent(enums.SOCKET_EVENT_JOIN_CONVERSATION, socketModels.JoinConversationPayload{ConversationID: conversationID})
}

func (m *Manager) LeaveConversation(conversationID uint) error {
	m.mu.Lock()
	delete(m.joined, conversationID)
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		return nil
	}
	return m.sendEvent(enums.SOCKET_EVENT_LEAVE_CONVERSATION, socketModels.JoinConversationPayload{ConversationID: conversationID})
}

func (m *Manager) StartTyping(conversationID, userID uint) error {
	return m.sendEvent(enums.SOCKET_EVENT_TYPING_START, socketModels.TypingPayload{ConversationID: conversationID, UserID: userID})
}

func (m *Manager) StopTyping(conversationID, userID uint) error {
	return m.sendEvent(enums.SOCKET_EVENT_TYPING_STOP, socketModels.TypingPayload{ConversationID: conversationID, UserID: userID})
}

// Dispose tears the connection down for good; a disposed manager will not
// reconnect.
func (m *Manager) Dispose() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.disposed = true
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("Dispose - error closing connection: %v", err)
		}
	}
}

func (m *Manager) sendEvent(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.conn == nil {
		return fmt.Errorf("not connected")
	}
	return m.conn.WriteJSON(socketModels.SocketEvent{
		Event:   event,
		Payload: raw,
	})
}

func (m *Manager) readLoop(conn Conn) {
	for {
		var frame socketModels.SocketEvent
		if err := conn.ReadJSON(&frame); err != nil {
			m.mu.Lock()
			stale := m.conn != conn
			if !stale {
				m.conn = nil
				m.state = StateDisconnected
			}
			m.mu.Unlock()
			if !stale {
				m.bus.Publish(Event{Kind: EventDisconnected})
			}
			return
		}
		m.dispatch(frame)
	}
}

func (m *Manager) dispatch(frame socketModels.SocketEvent) {
	switch frame.Event {
	case enums.SOCKET_EVENT_NEW_MESSAGE:
		var message models.Message
		if err := json.Unmarshal(frame.Payload, &message); err != nil {
			log.Printf("dispatch - bad new_message payload: %v", err)
			return
		}
		m.bus.Publish(Event{Kind: EventNewMessage, Message: &message})
	case enums.SOCKET_EVENT_USER_TYPING, enums.SOCKET_EVENT_USER_STOPPED_TYPING:
		var typing socketModels.TypingPayload
		if err := json.Unmarshal(frame.Payload, &typing); err != nil {
			log.Printf("dispatch - bad typing payload: %v", err)
			return
		}
		kind := EventUserTyping
		if frame.Event == enums.SOCKET_EVENT_USER_STOPPED_TYPING {
			kind = EventUserStoppedTyping
		}
		m.bus.Publish(Event{Kind: kind, Typing: &typing})
	case enums.SOCKET_EVENT_CONVERSATION_UPDATED:
		var update socketModels.ConversationUpdatedPayload
		if err := json.Unmarshal(frame.Payload, &update); err != nil {
			log.Printf("dispatch - bad conversation_updated payload: %v", err)
			return
		}
		m.bus.Publish(Event{Kind: EventConversationUpdated, ConversationUpdate: &update})
	default:
		log.Printf("dispatch - unknown event: %v", frame.Event)
	}
}
