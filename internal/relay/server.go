// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay implements the HTTP relay between browser or terminal chat
// clients and the Groq upstream.
//
// The relay owns the wire contract: clients POST their conversation to
// /api/chat and get back a single complete reply with cosmetic model and
// provider labels. The API key never leaves the server.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/loomchat/loom/internal/upstream"
)

const (
	// DefaultPort is the port the relay listens on.
	DefaultPort = 5000

	// MaxRequestBodySize caps inbound request bodies. Attachment metadata
	// rides along with messages, so the cap is generous.
	MaxRequestBodySize = 50 * 1024 * 1024 // 50MB

	// systemInstruction is prepended to every upstream request. Clients
	// never send it and never see it.
	systemInstruction = "You are an advanced AI Research Agent. You help with research, document analysis, code generation, and more. Be helpful, thorough, and professional."
)

// Version is the relay server version string.
const Version = "0.1.0"

// =============================================================================
// WIRE TYPES
// =============================================================================

// IncomingMessage is one conversation message as sent by a client.
type IncomingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AttachmentMeta is file metadata carried with a chat request. Contents are
// not uploaded; the metadata exists so clients can show what a reply
// referred to.
type AttachmentMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []IncomingMessage `json:"messages"`
	Files    []AttachmentMeta  `json:"files,omitempty"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Provider  string `json:"provider"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	API       string `json:"api"`
}

// =============================================================================
// SERVER
// =============================================================================

// Server is the relay HTTP server.
type Server struct {
	port     int
	router   *http.ServeMux
	server   *http.Server
	upstream *upstream.Client
	cors     *CORSConfig
}

// NewServer creates a relay server on the given port backed by the given
// upstream client.
func NewServer(port int, up *upstream.Client) *Server {
	if port <= 0 {
		port = DefaultPort
	}
	s := &Server{
		port:     port,
		router:   http.NewServeMux(),
		upstream: up,
		cors:     DefaultCORSConfig(),
	}
	s.setupRoutes()
	return s
}

// WithCORS overrides the CORS configuration.
func (s *Server) WithCORS(cors *CORSConfig) *Server {
	if cors != nil {
		s.cors = cors
	}
	return s
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the full middleware-wrapped handler. Exposed so tests can
// drive the server through httptest without a listener.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(log.Default()),
		CORSMiddleware(s.cors),
	)(s.router)
}

// setupRoutes registers the relay endpoints.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/chat", s.handleChat)
	s.router.HandleFunc("/health", s.handleHealth)
}

// =============================================================================
// HANDLERS
// =============================================================================

// handleChat relays one conversation to the upstream and returns the reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Messages required")
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Configuration is checked per request, not at startup: the relay
	// stays up and reports the problem on every call until fixed.
	if !s.upstream.IsConfigured() {
		s.writeError(w, http.StatusInternalServerError,
			"API key not configured. Please add GROQ_API_KEY to environment variables")
		return
	}

	messages := make([]upstream.ChatMessage, 0, len(req.Messages)+1)
	messages = append(messages, upstream.NewSystemMessage(systemInstruction))
	for _, m := range req.Messages {
		messages = append(messages, upstream.ChatMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := s.upstream.Chat(r.Context(), messages)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	modelLabel, providerLabel := s.upstream.Labels()
	s.writeJSON(w, http.StatusOK, ChatResponse{
		Response:  resp.GetContent(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Model:     modelLabel,
		Provider:  providerLabel,
	})
}

// handleHealth reports liveness. It never touches the upstream.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		API:       "Groq (100% Free!)",
	})
}

// validateMessages checks the inbound message list.
func validateMessages(messages []IncomingMessage) error {
	if messages == nil {
		return errors.New("Messages required")
	}
	for i, m := range messages {
		if m.Role == "" || m.Content == "" {
			return fmt.Errorf("message %d missing role or content", i)
		}
	}
	return nil
}

// writeUpstreamError maps upstream failures onto the relay's error contract.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	log.Printf("UPSTREAM_ERROR | err=%v", err)

	switch {
	case errors.Is(err, upstream.ErrNotConfigured):
		s.writeError(w, http.StatusInternalServerError,
			"API key not configured. Please add GROQ_API_KEY to environment variables")
	case errors.Is(err, upstream.ErrAuthFailed):
		s.writeError(w, http.StatusUnauthorized,
			"Invalid Groq API key. Check your key at console.groq.com")
	case errors.Is(err, upstream.ErrQuotaExhausted):
		s.writeError(w, http.StatusPaymentRequired,
			"Quota exhausted. Check your account at console.groq.com")
	case errors.Is(err, upstream.ErrRateLimited):
		s.writeError(w, http.StatusTooManyRequests,
			"Rate limit exceeded. Please wait a moment and try again.")
	default:
		s.writeErrorDetails(w, http.StatusInternalServerError, "Server error", err.Error())
	}
}

// =============================================================================
// SERVER LIFECYCLE
// =============================================================================

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s model=%s", addr, Version, s.upstream.Model())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response of the form {"error": message}.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

// writeErrorDetails writes an error response carrying upstream detail.
func (s *Server) writeErrorDetails(w http.ResponseWriter, status int, message, details string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   message,
		"details": details,
	})
}
