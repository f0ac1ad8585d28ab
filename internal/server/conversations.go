package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daylit/chatrelay/internal/chat"
	"github.com/daylit/chatrelay/internal/store"
)

type conversationPayload struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Date  chat.Bucket `json:"date"`
}

type messagePayload struct {
	ID      string    `json:"id"`
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

type messageCreatedPayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           chat.Role `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// handleListConversations never fails outward: any storage problem degrades
// to an empty list so the sidebar stays non-blocking.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	empty := []conversationPayload{}
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, empty)
		return
	}

	conversations, err := s.store.ListConversations(r.Context())
	if err != nil {
		s.log.Error("failed to list conversations", "error", err)
		s.writeJSON(w, http.StatusOK, empty)
		return
	}

	now := time.Now()
	out := make([]conversationPayload, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, conversationPayload{
			ID:    formatID(conv.ID),
			Title: conv.Title,
			Date:  chat.BucketFor(conv.CreatedAt, now),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "conversation store is not configured")
		return
	}

	conv, err := s.store.CreateConversation(r.Context(), store.DefaultTitle)
	if err != nil {
		s.log.Error("failed to create conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	s.writeJSON(w, http.StatusCreated, conversationPayload{
		ID:    formatID(conv.ID),
		Title: conv.Title,
		Date:  chat.BucketFor(conv.CreatedAt, time.Now()),
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	convID, ok := s.conversationID(w, r)
	if !ok {
		return
	}
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "conversation store is not configured")
		return
	}

	messages, err := s.store.ListMessages(r.Context(), convID)
	if err != nil {
		s.log.Error("failed to list messages", "error", err, "conversation_id", convID)
		s.writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	out := make([]messagePayload, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messagePayload{
			ID:      formatID(msg.ID),
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type appendMessageRequest struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	convID, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := chat.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == nil {
		s.writeError(w, http.StatusBadRequest, "content must be a string")
		return
	}
	content := strings.TrimSpace(*req.Content)
	if content == "" {
		s.writeError(w, http.StatusBadRequest, "content must not be empty")
		return
	}

	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "conversation store is not configured")
		return
	}

	msg, err := s.store.AppendMessage(r.Context(), convID, role, content)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error("failed to append message", "error", err, "conversation_id", convID)
		s.writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	s.writeJSON(w, http.StatusCreated, messageCreatedPayload{
		ID:             formatID(msg.ID),
		ConversationID: formatID(msg.ConversationID),
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	})
}

// conversationID parses the {id} path value. Validation happens before any
// storage access; zero and negative values are rejected alongside
// non-numeric ones.
func (s *Server) conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid conversation id")
		return 0, false
	}
	return id, true
}
