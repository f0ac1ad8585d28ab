package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/daylit/chatrelay/internal/chat"
	streamcodec "github.com/daylit/chatrelay/internal/stream"
)

// Controller states.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading-history"
	StateReady     State = "ready"
	StateStreaming State = "awaiting-assistant-stream"
	StateError     State = "error"
)

// FSM triggers.
type trigger string

const (
	triggerSelect      trigger = "Select"
	triggerLoaded      trigger = "HistoryLoaded"
	triggerLoadFailed  trigger = "HistoryLoadFailed"
	triggerSubmit      trigger = "Submit"
	triggerStreamEnded trigger = "StreamEnded"
)

// Entry is one transcript line held in memory. LocalID is client-assigned and
// stable across the optimistic window; ID is filled in once the server
// confirms persistence.
type Entry struct {
	LocalID string
	ID      string
	Role    chat.Role
	Content string
}

// Controller is the chat state machine for one active conversation: it loads
// history, optimistically appends user messages, relays the assistant stream
// into the transcript fragment by fragment, and persists the finished reply.
//
// A Controller is owned by a single goroutine, mirroring the event-driven
// UI it stands in for.
type Controller struct {
	api *Client
	fsm *stateless.StateMachine

	conversationID string
	entries        []Entry

	onFragment func(fragment string)
	onNotice   func(err error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithFragmentHook registers a callback invoked once per received fragment,
// after the in-progress assistant entry has been extended.
func WithFragmentHook(fn func(fragment string)) Option {
	return func(c *Controller) { c.onFragment = fn }
}

// WithNoticeHook registers a callback for user-visible transient failures
// (persistence errors, stream errors).
func WithNoticeHook(fn func(err error)) Option {
	return func(c *Controller) { c.onNotice = fn }
}

// NewController builds an idle controller on top of api.
func NewController(api *Client, opts ...Option) *Controller {
	c := &Controller{api: api}
	for _, opt := range opts {
		opt(c)
	}

	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(triggerSelect, StateLoading)
	fsm.Configure(StateLoading).
		Permit(triggerLoaded, StateReady).
		Permit(triggerLoadFailed, StateError)
	fsm.Configure(StateReady).
		Permit(triggerSubmit, StateStreaming).
		Permit(triggerSelect, StateLoading)
	fsm.Configure(StateStreaming).
		Permit(triggerStreamEnded, StateReady)
	fsm.Configure(StateError).
		Permit(triggerSelect, StateLoading)

	c.fsm = fsm
	return c
}

// State returns the current controller state.
func (c *Controller) State() State {
	return c.fsm.MustState().(State)
}

// ConversationID returns the active conversation, empty when idle.
func (c *Controller) ConversationID() string {
	return c.conversationID
}

// Messages returns a snapshot of the in-memory transcript.
func (c *Controller) Messages() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Select makes conversationID active and replaces the transcript with its
// persisted history. No merge happens: the server copy wins entirely.
func (c *Controller) Select(ctx context.Context, conversationID string) error {
	if err := c.fsm.Fire(triggerSelect); err != nil {
		return fmt.Errorf("cannot switch conversation now: %w", err)
	}

	messages, err := c.api.ListMessages(ctx, conversationID)
	if err != nil {
		_ = c.fsm.Fire(triggerLoadFailed)
		c.notify(err)
		return err
	}

	c.conversationID = conversationID
	c.entries = c.entries[:0]
	for _, msg := range messages {
		c.entries = append(c.entries, Entry{
			LocalID: uuid.NewString(),
			ID:      msg.ID,
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return c.fsm.Fire(triggerLoaded)
}

// NewConversation creates a conversation and selects it.
func (c *Controller) NewConversation(ctx context.Context) (string, error) {
	conv, err := c.api.CreateConversation(ctx)
	if err != nil {
		c.notify(err)
		return "", err
	}
	if err := c.Select(ctx, conv.ID); err != nil {
		return "", err
	}
	return conv.ID, nil
}

// Send submits one user turn: optimistic append, durable persist, streaming
// relay call, incremental assistant rendering, and a final persist of the
// assembled reply. It returns once the turn has fully settled.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("message text must not be empty")
	}
	if c.State() != StateReady || c.conversationID == "" {
		return fmt.Errorf("cannot send in state %q", c.State())
	}

	// Optimistic append; rolled back if the durable write fails.
	userEntry := Entry{LocalID: uuid.NewString(), Role: chat.RoleUser, Content: text}
	c.entries = append(c.entries, userEntry)

	persisted, err := c.api.AppendMessage(ctx, c.conversationID, chat.RoleUser, text)
	if err != nil {
		c.removeEntry(userEntry.LocalID)
		c.notify(err)
		return err
	}
	c.setServerID(userEntry.LocalID, persisted.ID)

	if err := c.fsm.Fire(triggerSubmit); err != nil {
		return err
	}
	defer func() { _ = c.fsm.Fire(triggerStreamEnded) }()

	history := make([]Message, 0, len(c.entries))
	for _, e := range c.entries {
		history = append(history, Message{ID: e.ID, Role: e.Role, Content: e.Content})
	}

	upstream, err := c.api.StreamChat(ctx, history)
	if err != nil {
		c.notify(err)
		return err
	}
	defer upstream.Close()

	assistant := Entry{LocalID: uuid.NewString(), Role: chat.RoleAssistant}
	c.entries = append(c.entries, assistant)

	var fragments strings.Builder
	var legacyText string
	var streamErr error

loop:
	for {
		ev, err := upstream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		switch ev.Kind {
		case streamcodec.KindText:
			fragments.WriteString(ev.Text)
			c.setContent(assistant.LocalID, fragments.String())
			if c.onFragment != nil {
				c.onFragment(ev.Text)
			}
		case streamcodec.KindFinish:
			legacyText = ev.LegacyText
		case streamcodec.KindError:
			streamErr = errors.New(ev.Message)
			break loop
		}
	}

	// Structured fragments win over the legacy flat field when both exist.
	final := fragments.String()
	if final == "" {
		final = legacyText
	}

	if final == "" {
		// Nothing was rendered; drop the empty placeholder.
		c.removeEntry(assistant.LocalID)
		if streamErr == nil {
			streamErr = errors.New("assistant stream produced no text")
		}
		c.notify(streamErr)
		return streamErr
	}
	c.setContent(assistant.LocalID, final)

	if streamErr != nil {
		c.notify(streamErr)
		return streamErr
	}

	// The rendered transcript is preserved even if this durable write fails;
	// the failure is only reported.
	if saved, err := c.api.AppendMessage(ctx, c.conversationID, chat.RoleAssistant, final); err != nil {
		c.notify(err)
	} else {
		c.setServerID(assistant.LocalID, saved.ID)
	}
	return nil
}

func (c *Controller) notify(err error) {
	if c.onNotice != nil {
		c.onNotice(err)
	}
}

func (c *Controller) removeEntry(localID string) {
	for i, e := range c.entries {
		if e.LocalID == localID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

func (c *Controller) setContent(localID, content string) {
	for i := range c.entries {
		if c.entries[i].LocalID == localID {
			c.entries[i].Content = content
			return
		}
	}
}

func (c *Controller) setServerID(localID, serverID string) {
	for i := range c.entries {
		if c.entries[i].LocalID == localID {
			c.entries[i].ID = serverID
			return
		}
	}
}
