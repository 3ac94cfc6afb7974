package repositories

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"converse/internal/enums"
	"converse/internal/errs"
	"converse/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *ChatRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// One connection so concurrent transactions serialize instead of
	// opening separate in-memory databases.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Conversation{}, &models.Participant{}, &models.Message{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewChatRepository(db)
}

func mustCreateDirect(t *testing.T, repo *ChatRepository, a, b uint) *models.Conversation {
	t.Helper()
	conversation, errList := repo.FindOrCreateDirect([]uint{a, b}, "general", a)
	if len(errList) > 0 {
		t.Fatalf("FindOrCreateDirect failed: %v", errList)
	}
	return conversation
}

func mustAppend(t *testing.T, repo *ChatRepository, conversationID, senderID uint, content string) *models.Message {
	t.Helper()
	message, err := repo.AppendMessage(conversationID, senderID, content, enums.MESSAGE_TYPE_TEXT, nil)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	return message
}

func TestFindOrCreateDirectIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)

	first := mustCreateDirect(t, repo, 1, 2)
	second := mustCreateDirect(t, repo, 1, 2)
	if first.ID != second.ID {
		t.Fatalf("expected same conversation, got %d and %d", first.ID, second.ID)
	}

	// Participant order must not matter.
	third := mustCreateDirect(t, repo, 2, 1)
	if third.ID != first.ID {
		t.Fatalf("expected same conversation for reversed pair, got %d", third.ID)
	}

	if len(first.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(first.Participants))
	}
}

func TestFindOrCreateDirectConcurrentCallsConverge(t *testing.T) {
	repo := newTestRepo(t)

	const callers = 8
	ids := make([]uint, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conversation, errList := repo.FindOrCreateDirect([]uint{7, 8}, "general", 7)
			if len(errList) > 0 {
				t.Errorf("caller %d failed: %v", i, errList)
				return
			}
			ids[i] = conversation.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("callers diverged: %v", ids)
		}
	}

	participants, err := repo.GetParticipants(ids[0])
	if err != nil {
		t.Fatalf("GetParticipants failed: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected exactly 2 participant rows, got %d", len(participants))
	}
}

func TestDirectConversationsDifferByContext(t *testing.T) {
	repo := newTestRepo(t)

	general := mustCreateDirect(t, repo, 1, 2)
	work, errList := repo.FindOrCreateDirect([]uint{1, 2}, "work", 1)
	if len(errList) > 0 {
		t.Fatalf("FindOrCreateDirect failed: %v", errList)
	}
	if general.ID == work.ID {
		t.Fatal("expected different conversations for different contexts")
	}
}

func TestCreateGroupNeverDeduplicates(t *testing.T) {
	repo := newTestRepo(t)

	title := "weekend plans"
	first, errList := repo.CreateGroup([]uint{1, 2, 3}, &title, 1)
	if len(errList) > 0 {
		t.Fatalf("CreateGroup failed: %v", errList)
	}
	second, errList := repo.CreateGroup([]uint{1, 2, 3}, &title, 1)
	if len(errList) > 0 {
		t.Fatalf("CreateGroup failed: %v", errList)
	}
	if first.ID == second.ID {
		t.Fatal("expected two distinct group conversations")
	}

	for _, participant := range first.Participants {
		want := enums.PARTICIPANT_ROLE_MEMBER
		if participant.UserID == 1 {
			want = enums.PARTICIPANT_ROLE_ADMIN
		}
		if participant.Role != want {
			t.Errorf("user %d: expected role %q, got %q", participant.UserID, want, participant.Role)
		}
	}
}

func TestAppendMessageRejectsOutsiders(t *testing.T) {
	repo := newTestRepo(t)
	conversation := mustCreateDirect(t, repo, 1, 2)

	if _, err := repo.AppendMessage(conversation.ID, 99, "hi", enums.MESSAGE_TYPE_TEXT, nil); !errors.Is(err, errs.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := repo.AppendMessage(4242, 1, "hi", enums.MESSAGE_TYPE_TEXT, nil); !errors.Is(err, errs.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestUnreadAccounting(t *testing.T) {
	repo := newTestRepo(t)

	title := "trio"
	conversation, errList := repo.CreateGroup([]uint{1, 2, 3}, &title, 1)
	if len(errList) > 0 {
		t.Fatalf("CreateGroup failed: %v", errList)
	}

	mustAppend(t, repo, conversation.ID, 1, "hello")

	for user, want := range map[uint]int{1: 0, 2: 1, 3: 1} {
		got, err := repo.UnreadCountFor(conversation.ID, user)
		if err != nil {
			t.Fatalf("UnreadCountFor(%d) failed: %v", user, err)
		}
		if got != want {
			t.Errorf("user %d: expected unread %d, got %d", user, want, got)
		}
	}
}

func TestMarkReadResetsCounterUntilNextMessage(t *testing.T) {
	repo := newTestRepo(t)
	conversation := mustCreateDirect(t, repo, 1, 2)

	mustAppend(t, repo, conversation.ID, 1, "one")
	mustAppend(t, repo, conversation.ID, 1, "two")

	if err := repo.MarkRead(conversation.ID, 2); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	// Idempotent.
	if err := repo.MarkRead(conversation.ID, 2); err != nil {
		t.Fatalf("second MarkRead failed: %v", err)
	}

	if got, _ := repo.UnreadCountFor(conversation.ID, 2); got != 0 {
		t.Fatalf("expected unread 0 after MarkRead, got %d", got)
	}

	mustAppend(t, repo, conversation.ID, 1, "three")
	if got, _ := repo.UnreadCountFor(conversation.ID, 2); got != 1 {
		t.Fatalf("expected unread 1 after new message, got %d", got)
	}

	if err := repo.MarkRead(conversation.ID, 55); !errors.Is(err, errs.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant for outsider, got %v", err)
	}
}

func TestPaginationIsCompleteAndOrdered(t *testing.T) {
	repo := newTestRepo(t)
	conversation := mustCreateDirect(t, repo, 1, 2)

	const total = 25
	for i := 0; i < total; i++ {
		mustAppend(t, repo, conversation.ID, 1, fmt.Sprintf("message %d", i))
	}

	seen := make(map[uint]struct{})
	var cursor *time.Time
	var cursorID uint
	pages := 0
	for {
		messages, hasMore, err := repo.GetMessages(conversation.ID, 10, cursor, cursorID)
		if err != nil {
			t.Fatalf("GetMessages failed: %v", err)
		}
		for i, message := range messages {
			if _, ok := seen[message.ID]; ok {
				t.Fatalf("message %d returned twice", message.ID)
			}
			seen[message.ID] = struct{}{}
			if i > 0 {
				prev := messages[i-1]
				if message.CreatedAt.After(prev.CreatedAt) {
					t.Fatal("page not in descending created_at order")
				}
				if message.CreatedAt.Equal(prev.CreatedAt) && message.ID >= prev.ID {
					t.Fatal("created_at tie not broken by descending id")
				}
			}
		}
		if len(messages) > 0 {
			oldest := messages[len(messages)-1]
			createdAt := oldest.CreatedAt
			cursor = &createdAt
			cursorID = oldest.ID
		}
		pages++
		if !hasMore {
			break
		}
		if pages > total {
			t.Fatal("pagination did not terminate")
		}
	}

	if len(seen) != total {
		t.Fatalf("expected %d distinct messages, got %d", total, len(seen))
	}
}

func TestSoftDeleteHidesMessageButKeepsOrder(t *testing.T) {
	repo := newTestRepo(t)
	conversation := mustCreateDirect(t, repo, 1, 2)

	first := mustAppend(t, repo, conversation.ID, 1, "first")
	second := mustAppend(t, repo, conversation.ID, 2, "second")
	third := mustAppend(t, repo, conversation.ID, 1, "third")

	if err := repo.SoftDeleteMessage(second.ID, 1); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-sender, got %v", err)
	}
	if err := repo.SoftDeleteMessage(second.ID, 2); err != nil {
		t.Fatalf("SoftDeleteMessage failed: %v", err)
	}
	if err := repo.SoftDeleteMessage(4242, 1); !errors.Is(err, errs.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}

	messages, _, err := repo.GetMessages(conversation.ID, 10, nil, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 visible messages, got %d", len(messages))
	}
	if messages[0].ID != third.ID || messages[1].ID != first.ID {
		t.Fatalf("surrounding messages shifted: got ids %d, %d", messages[0].ID, messages[1].ID)
	}
}

func TestLastMessageAtNeverMovesBackwards(t *testing.T) {
	repo := newTestRepo(t)
	conversation := mustCreateDirect(t, repo, 1, 2)

	message := mustAppend(t, repo, conversation.ID, 1, "hello")

	fresh, errList := repo.getConversation(conversation.ID)
	if len(errList) > 0 {
		t.Fatalf("getConversation failed: %v", errList)
	}
	if fresh.LastMessageAt.Before(message.CreatedAt) {
		t.Fatalf("last_message_at %v is before message created_at %v", fresh.LastMessageAt, message.CreatedAt)
	}
}

func TestTogglePinFlipsOnlyOwnFlag(t *testing.T) {
	repo := newTestRepo(t)
	conversation := mustCreateDirect(t, repo, 1, 2)

	pinned, err := repo.TogglePin(conversation.ID, 1)
	if err != nil {
		t.Fatalf("TogglePin failed: %v", err)
	}
	if !pinned {
		t.Fatal("expected pinned true after first toggle")
	}

	participants, err := repo.GetParticipants(conversation.ID)
	if err != nil {
		t.Fatalf("GetParticipants failed: %v", err)
	}
	for _, participant := range participants {
		if participant.UserID == 2 && participant.IsPinned {
			t.Fatal("other participant's pin flag changed")
		}
	}

	pinned, err = repo.TogglePin(conversation.ID, 1)
	if err != nil {
		t.Fatalf("TogglePin failed: %v", err)
	}
	if pinned {
		t.Fatal("expected pinned false after second toggle")
	}
}

func TestGetUserConversationsAnnotatesAndOrders(t *testing.T) {
	repo := newTestRepo(t)

	older := mustCreateDirect(t, repo, 1, 2)
	title := "group"
	newer, errList := repo.CreateGroup([]uint{1, 3, 4}, &title, 1)
	if len(errList) > 0 {
		t.Fatalf("CreateGroup failed: %v", errList)
	}

	mustAppend(t, repo, older.ID, 2, "old thread")
	time.Sleep(5 * time.Millisecond)
	mustAppend(t, repo, newer.ID, 3, "new thread")

	response, errList := repo.GetUserConversations(1, 1, 10)
	if len(errList) > 0 {
		t.Fatalf("GetUserConversations failed: %v", errList)
	}
	if response.Total != 2 || len(response.Conversations) != 2 {
		t.Fatalf("expected 2 conversations, got total=%d len=%d", response.Total, len(response.Conversations))
	}
	if response.Conversations[0].ID != newer.ID {
		t.Fatal("expected most recently active conversation first")
	}
	for _, conversation := range response.Conversations {
		if conversation.Unread != 1 {
			t.Errorf("conversation %d: expected unread 1, got %d", conversation.ID, conversation.Unread)
		}
		if conversation.LastMessage == nil {
			t.Errorf("conversation %d: missing last message", conversation.ID)
		}
	}
}
