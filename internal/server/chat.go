package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/daylit/chatrelay/internal/chat"
	"github.com/daylit/chatrelay/internal/llm"
	"github.com/daylit/chatrelay/internal/stream"
)

type chatRequest struct {
	Messages []chatRequestMessage `json:"messages"`
}

type chatRequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleChat relays a message history to the model provider and re-emits its
// token stream in the line-delimited record format. Every fragment is
// forwarded and flushed before the next one is awaited.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	history := make([]chat.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role, err := chat.ParseRole(m.Role)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(m.Content) == "" {
			s.writeError(w, http.StatusBadRequest, "message content must not be empty")
			return
		}
		history = append(history, chat.Message{Role: role, Content: m.Content})
	}

	if s.llm == nil {
		s.writeError(w, http.StatusServiceUnavailable, "model provider is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), relayTimeout)
	defer cancel()

	upstream, err := s.llm.StreamChat(ctx, history)
	if err != nil {
		// Headers are not committed yet, so this can still be a proper 500
		// with the debug detail the UI surfaces.
		s.log.Error("chat stream failed to open", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "failed to contact model provider",
			"details": err.Error(),
		})
		return
	}
	defer upstream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(stream.ProtocolHeader, stream.ProtocolVersion)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	out := stream.NewWriter(w, flush)

	for {
		ev, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Headers are committed; the error travels inside the stream.
			s.log.Error("chat stream error", "error", err)
			_ = out.Error(err.Error())
			_ = out.Finish("error")
			return
		}
		switch ev.Kind {
		case llm.EventText:
			if err := out.Text(ev.Text); err != nil {
				s.log.Warn("client went away mid-stream", "error", err)
				return
			}
		case llm.EventFinish:
			_ = out.Finish(ev.FinishReason)
		}
	}
}
