package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daylit/chatrelay/internal/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    title TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS messages_conversation_created_idx
    ON messages (conversation_id, created_at);
`

// foreignKeyViolation is the Postgres error code raised when a message
// references a missing conversation.
const foreignKeyViolation = "23503"

// Postgres is the Store implementation backed by a Postgres-compatible
// managed database, accessed through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to the database at url, verifies the connection and ensures
// the schema exists.
func Open(ctx context.Context, url string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) CreateConversation(ctx context.Context, title string) (*chat.Conversation, error) {
	conv := &chat.Conversation{Title: title}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO conversations (title) VALUES ($1) RETURNING id, created_at`,
		title,
	).Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

func (p *Postgres) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, created_at FROM conversations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]chat.Conversation, 0)
	for rows.Next() {
		var conv chat.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (p *Postgres) ListMessages(ctx context.Context, conversationID int64) ([]chat.Message, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (p *Postgres) AppendMessage(ctx context.Context, conversationID int64, role chat.Role, content string) (*chat.Message, error) {
	msg := &chat.Message{ConversationID: conversationID, Role: role, Content: content}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		conversationID, role, content,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
