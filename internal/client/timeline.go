package client

import (
	"sync"

	"converse/internal/models"

	"github.com/google/uuid"
)

// MetadataTempID is the metadata key carrying the client-generated
// temporary id. The server stores metadata opaquely and echoes it back, so
// a broadcast copy of one's own message can be matched to its optimistic
// echo.
const MetadataTempID = "temp_id"

type EntryState int

const (
	// EntryPending is an optimistic local echo not yet acknowledged by the
	// server.
	EntryPending EntryState = iota
	// EntryConfirmed carries a server id and timestamp.
	EntryConfirmed
)

type Entry struct {
	State   EntryState
	TempID  string
	Message models.Message
}

// Timeline is the local ordered message list of one open conversation.
// Confirmed entries sort by (created_at, id); pending entries trail at the
// end until confirmed, failed, or superseded by their real counterpart.
type Timeline struct {
	mu      sync.Mutex
	selfID  uint
	entries []Entry
}

func NewTimeline(selfUserID uint) *Timeline {
	return &Timeline{
		selfID: selfUserID,
	}
}

// AppendPending inserts the optimistic echo and returns its temporary id.
func (t *Timeline) AppendPending(conversationID uint, content string) string {
	tempID := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		State:  EntryPending,
		TempID: tempID,
		Message: models.Message{
			ConversationID: conversationID,
			SenderID:       t.selfID,
			Content:        content,
			Metadata:       models.JSONMap{MetadataTempID: tempID},
		},
	})
	return tempID
}

// ConfirmPending replaces the matching optimistic echo, in place, with the
// server-confirmed message. Matching is by temp id, never by content.
func (t *Timeline) ConfirmPending(tempID string, message models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, entry := range t.entries {
		if entry.State == EntryPending && entry.TempID == tempID {
			t.entries[i] = Entry{
				State:   EntryConfirmed,
				Message: message,
			}
			return true
		}
	}
	return false
}

// FailPending removes the optimistic echo after a failed send. The error
// itself is the caller's to surface; nothing is retried here.
func (t *Timeline) FailPending(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, entry := range t.entries {
		if entry.State == EntryPending && entry.TempID == tempID {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyBroadcast merges one live new_message event. A broadcast of the
// local user's own message whose optimistic echo is still outstanding is
// dropped, the send path will do the replacement. That is what keeps a
// multi-device sender from rendering their message twice.
func (t *Timeline) ApplyBroadcast(message models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasConfirmedLocked(message.ID) {
		return false
	}
	if message.SenderID == t.selfID {
		if tempID, ok := messageTempID(message); ok && t.hasPendingLocked(tempID) {
			return false
		}
	}
	t.insertConfirmedLocked(message)
	return true
}

// MergePage reconciles one fetched page into the timeline, merging by id
// and timestamp. Fetched order is authoritative over buffered live events.
// A confirmed message carrying the temp id of an outstanding pending entry
// supersedes that entry.
func (t *Timeline) MergePage(messages []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, message := range messages {
		if t.hasConfirmedLocked(message.ID) {
			continue
		}
		if tempID, ok := messageTempID(message); ok {
			if t.replacePendingLocked(tempID, message) {
				continue
			}
		}
		t.insertConfirmedLocked(message)
	}
}

// Messages returns the rendered list, oldest first, pendings at the tail.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]models.Message, 0, len(t.entries))
	for _, entry := range t.entries {
		result = append(result, entry.Message)
	}
	return result
}

func (t *Timeline) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, entry := range t.entries {
		if entry.State == EntryPending {
			count++
		}
	}
	return count
}

func (t *Timeline) hasConfirmedLocked(messageID uint) bool {
	for _, entry := range t.entries {
		if entry.State == EntryConfirmed && entry.Message.ID == messageID {
			return true
		}
	}
	return false
}

func (t *Timeline) hasPendingLocked(tempID string) bool {
	for _, entry := range t.entries {
		if entry.State == EntryPending && entry.TempID == tempID {
			return true
		}
	}
	return false
}

func (t *Timeline) replacePendingLocked(tempID string, message models.Message) bool {
	for i, entry := range t.entries {
		if entry.State == EntryPending && entry.TempID == tempID {
			t.entries[i] = Entry{
				State:   EntryConfirmed,
				Message: message,
			}
			return true
		}
	}
	return false
}

// insertConfirmedLocked places the message in (created_at, id) order among
// the confirmed entries, before any trailing pendings.
func (t *Timeline) insertConfirmedLocked(message models.Message) {
	entry := Entry{
		State:   EntryConfirmed,
		Message: message,
	}
	at := len(t.entries)
	for i, existing := range t.entries {
		if existing.State == EntryPending {
			at = i
			break
		}
		if confirmedAfter(existing.Message, message) {
			at = i
			break
		}
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[at+1:], t.entries[at:])
	t.entries[at] = entry
}

func confirmedAfter(a, b models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func messageTempID(message models.Message) (string, bool) {
	if message.Metadata == nil {
		return "", false
	}
	tempID, ok := message.Metadata[MetadataTempID].(string)
	return tempID, ok && tempID != ""
}
