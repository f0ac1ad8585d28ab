package store

import (
	"context"
	"sync"
	"time"

	"github.com/daylit/chatrelay/internal/chat"
)

// Memory is an in-process Store with the same semantics as the Postgres
// implementation, including the foreign-key check on message appends. It
// backs the test suites.
type Memory struct {
	mu            sync.Mutex
	nextConvID    int64
	nextMsgID     int64
	conversations []chat.Conversation
	messages      []chat.Message

	// now is swappable so tests can control timestamps.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// SetClock replaces the timestamp source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) CreateConversation(ctx context.Context, title string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextConvID++
	conv := chat.Conversation{ID: m.nextConvID, Title: title, CreatedAt: m.now()}
	m.conversations = append(m.conversations, conv)
	return &conv, nil
}

func (m *Memory) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]chat.Conversation, 0, len(m.conversations))
	// Newest first; creation order doubles as creation-time order here.
	for i := len(m.conversations) - 1; i >= 0; i-- {
		out = append(out, m.conversations[i])
	}
	return out, nil
}

func (m *Memory) ListMessages(ctx context.Context, conversationID int64) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]chat.Message, 0)
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *Memory) AppendMessage(ctx context.Context, conversationID int64, role chat.Role, content string) (*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.conversationExists(conversationID) {
		return nil, ErrConversationNotFound
	}

	m.nextMsgID++
	msg := chat.Message{
		ID:             m.nextMsgID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      m.now(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *Memory) Close() {}

func (m *Memory) conversationExists(id int64) bool {
	for _, conv := range m.conversations {
		if conv.ID == id {
			return true
		}
	}
	return false
}
