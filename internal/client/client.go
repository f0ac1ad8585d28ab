// Package client is the browser-equivalent side of the system: a typed API
// client for the conversation routes plus the chat controller that owns the
// in-memory transcript, and the sidebar list controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/daylit/chatrelay/internal/chat"
	"github.com/daylit/chatrelay/internal/stream"
)

// Conversation is the wire shape of one sidebar entry.
type Conversation struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Date  chat.Bucket `json:"date"`
}

// Message is the wire shape of one persisted message.
type Message struct {
	ID      string    `json:"id"`
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

// Client talks to the chatrelay HTTP API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New builds a client for the API at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, wantStatus int) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError turns a non-success response into an error carrying the server's
// message when one is present.
func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, payload.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}

// CreateConversation creates a conversation with the placeholder title.
func (c *Client) CreateConversation(ctx context.Context) (Conversation, error) {
	var conv Conversation
	err := c.do(ctx, http.MethodPost, "/conversations", nil, &conv, http.StatusCreated)
	return conv, err
}

// ListConversations returns the sidebar list, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &out, http.StatusOK)
	return out, err
}

// ListMessages returns the persisted history of one conversation in
// ascending creation order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	err := c.do(ctx, http.MethodGet, "/conversations/"+conversationID+"/messages", nil, &out, http.StatusOK)
	return out, err
}

type appendRequest struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

// AppendMessage persists one message and returns the server-assigned row.
func (c *Client) AppendMessage(ctx context.Context, conversationID string, role chat.Role, content string) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages",
		appendRequest{Role: role, Content: content}, &out, http.StatusCreated)
	return out, err
}

type chatMessage struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

// ChatStream is an open relay response. Next yields decoded records until
// io.EOF; Close releases the connection.
type ChatStream struct {
	body   io.ReadCloser
	reader *stream.Reader
}

func (s *ChatStream) Next() (stream.Event, error) { return s.reader.Next() }
func (s *ChatStream) Close() error                { return s.body.Close() }

// StreamChat opens the streaming relay call with the full message history.
func (c *Client) StreamChat(ctx context.Context, history []Message) (*ChatStream, error) {
	req := chatRequest{Messages: make([]chatMessage, len(history))}
	for i, m := range history {
		req.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	if v := resp.Header.Get(stream.ProtocolHeader); v != "" && v != stream.ProtocolVersion {
		resp.Body.Close()
		return nil, fmt.Errorf("unsupported stream protocol version %q", v)
	}
	return &ChatStream{body: resp.Body, reader: stream.NewReader(resp.Body)}, nil
}
