// Package store persists conversations and their messages. The production
// implementation talks to a Postgres-compatible backend; an in-memory
// implementation with the same semantics backs the tests.
package store

import (
	"context"
	"errors"

	"github.com/daylit/chatrelay/internal/chat"
)

// ErrConversationNotFound is returned when a message references a
// conversation that does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// DefaultTitle is the placeholder title assigned to newly created
// conversations until a rename feature exists.
const DefaultTitle = "New chat"

// Store is the conversation store contract. Messages within a conversation
// are always returned in ascending creation order; conversations are listed
// newest first.
type Store interface {
	CreateConversation(ctx context.Context, title string) (*chat.Conversation, error)
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]chat.Message, error)
	AppendMessage(ctx context.Context, conversationID int64, role chat.Role, content string) (*chat.Message, error)
	Close()
}
