// Package llm abstracts the model provider behind a small streaming
// interface: a stream yields text fragments, then one terminal finish event,
// then io.EOF. The real implementation wraps the OpenAI client; a fixture
// implementation produces a deterministic stream for development and tests.
package llm

import (
	"context"

	"github.com/daylit/chatrelay/internal/chat"
)

// EventKind discriminates stream events.
type EventKind int

const (
	// EventText carries one incremental text fragment.
	EventText EventKind = iota
	// EventFinish is the terminal event carrying the finish reason.
	EventFinish
)

// Event is one item yielded by a chat stream.
type Event struct {
	Kind         EventKind
	Text         string
	FinishReason string
}

// Stream yields events until io.EOF. Recv blocks until the next fragment is
// available; Close releases the underlying connection.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Client opens a streaming chat completion for a role-tagged message history.
// It is the minimal surface the relay needs, which keeps it easy to fake in
// tests.
type Client interface {
	StreamChat(ctx context.Context, messages []chat.Message) (Stream, error)
}

// DefaultSystemPrompt is the persona instruction sent ahead of the user
// history when none is configured.
const DefaultSystemPrompt = "You are a friendly chatbot assistant. Answer clearly and concisely."
