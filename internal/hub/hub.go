// Package hub maps connected sessions to subscription rooms and fans live
// events out to them. Rooms are in-memory only; durable conversation
// membership lives in the repository.
package hub

import (
	"fmt"
	"log"
	"sync"

	socketModels "converse/internal/models/socket"
)

// Conn is the write side of one socket connection. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type Client struct {
	UserID uint
	Conn   Conn
}

type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
}

func UserRoom(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func ConversationRoom(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]map[string]struct{}),
	}
}

// Join adds the client to a room. Joining a room twice is a no-op.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	if _, ok := h.clients[client]; !ok {
		h.clients[client] = make(map[string]struct{})
	}
	h.clients[client][room] = struct{}{}
}

// Leave removes the client from a room. Safe to call for a room the client
// never joined.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.clients[client]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.clients, client)
		}
	}
}

// Disconnect removes the client from every room it joined.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.clients[client] {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, client)
}

// Broadcast writes the event to every connection in the room, the sender's
// own connections included. Skipping one's own confirmed message is the
// receiving client's job, not the router's.
func (h *Hub) Broadcast(room, event string, payload any) {
	h.BroadcastExcept(room, event, payload, 0)
}

// BroadcastExcept writes the event to every connection in the room except
// those belonging to excludeUserID (zero excludes nobody). Connections that
// fail the write are closed and dropped from all rooms.
func (h *Hub) BroadcastExcept(room, event string, payload any, excludeUserID uint) {
	envelope := socketModels.SocketEnvelope{
		Event:   event,
		Payload: payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []*Client
	for client := range h.rooms[room] {
		if excludeUserID != 0 && client.UserID == excludeUserID {
			continue
		}
		if err := client.Conn.WriteJSON(envelope); err != nil {
			log.Printf("Error writing json to user %d: %v", client.UserID, err)
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		if err := client.Conn.Close(); err != nil {
			log.Printf("Error closing connection: %v", err)
		}
		for r := range h.clients[client] {
			if members, ok := h.rooms[r]; ok {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, r)
				}
			}
		}
		delete(h.clients, client)
	}
}

// Occupants reports how many connections are currently in the room.
func (h *Hub) Occupants(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// CloseAll closes every connection and empties all rooms. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if err := client.Conn.Close(); err != nil {
			log.Printf("Error closing connection: %v", err)
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.clients = make(map[*Client]map[string]struct{})
}
