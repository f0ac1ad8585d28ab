// Package server exposes the conversation API and the chat relay endpoint.
//
// Endpoints:
//   - GET  /conversations               - sidebar list with recency buckets
//   - POST /conversations               - create a conversation
//   - GET  /conversations/{id}/messages - ordered message history
//   - POST /conversations/{id}/messages - append one message
//   - POST /chat                        - streaming chat relay
//   - GET  /health                      - configuration probe
//
// Collaborators are injected explicitly; a nil store or nil model client is
// the "unconfigured" state and the affected routes degrade per-endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/daylit/chatrelay/internal/llm"
	"github.com/daylit/chatrelay/internal/logger"
	"github.com/daylit/chatrelay/internal/store"
)

const (
	// relayTimeout is the wall-clock budget for one streaming relay call.
	relayTimeout = 30 * time.Second

	// maxRequestBodySize caps JSON request bodies (1MB).
	maxRequestBodySize = 1 << 20
)

// Server routes HTTP requests to the conversation store and the model
// provider client.
type Server struct {
	store store.Store
	llm   llm.Client
	log   *slog.Logger

	mux  *http.ServeMux
	http *http.Server
}

// New builds a Server. Either collaborator may be nil, which marks it
// unconfigured.
func New(st store.Store, client llm.Client) *Server {
	s := &Server{
		store: st,
		llm:   client,
		log:   logger.L,
		mux:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /conversations", s.handleListConversations)
	s.mux.HandleFunc("POST /conversations", s.handleCreateConversation)
	s.mux.HandleFunc("GET /conversations/{id}/messages", s.handleListMessages)
	s.mux.HandleFunc("POST /conversations/{id}/messages", s.handleAppendMessage)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the fully wrapped handler, for embedding in tests or a
// custom http.Server.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
	)(s.mux)
}

// Start serves on addr until Shutdown is called or the listener fails.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// The write timeout has to outlast the relay budget.
		WriteTimeout: 2 * relayTimeout,
		IdleTimeout:  120 * time.Second,
	}
	s.log.Info("starting server", "address", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// healthResponse reports which collaborators are configured.
type healthResponse struct {
	Status   string `json:"status"`
	Store    string `json:"store"`
	Provider string `json:"provider"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "configured", Provider: "configured"}
	code := http.StatusOK
	if s.store == nil {
		resp.Store = "not_configured"
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if s.llm == nil {
		resp.Provider = "not_configured"
		resp.Status = "degraded"
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// formatID renders server-assigned numeric ids the way the browser client
// expects them: as strings.
func formatID(id int64) string {
	return fmt.Sprintf("%d", id)
}
