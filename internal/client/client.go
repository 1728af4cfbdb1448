// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client talks to the relay server on behalf of chat frontends.
//
// It converts conversation history into the relay's wire format and maps
// relay failures into a small error taxonomy the UI can act on: connection
// problems get a "is the relay running?" hint, credential and quota problems
// surface the relay's message verbatim.
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

	"github.com/loomchat/loom/internal/model"
)

// DefaultBaseURL is the relay address clients use out of the box.
const DefaultBaseURL = "http://localhost:5000"

// DefaultTimeout bounds a full round trip through the relay and upstream.
const DefaultTimeout = 90 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorKind classifies relay failures for the UI.
type ErrorKind int

const (
	// KindConnection: the relay could not be reached at all.
	KindConnection ErrorKind = iota

	// KindInvalidRequest: the relay rejected the request shape (400).
	KindInvalidRequest

	// KindInvalidCredentials: the relay's upstream key was rejected (401).
	KindInvalidCredentials

	// KindQuotaExhausted: the upstream account is out of quota (402).
	KindQuotaExhausted

	// KindRateLimited: the upstream throttled the request (429).
	KindRateLimited

	// KindServer: any other relay-side failure (500 and friends).
	KindServer
)

// String returns the kind name for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindInvalidRequest:
		return "invalid_request"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a classified relay failure.
type Error struct {
	Kind    ErrorKind
	Message string

	// Hint is a short actionable suggestion, shown under the message.
	Hint string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("relay %s: %s", e.Kind, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// wireMessage is one message in the relay's request format.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireAttachment is attachment metadata in the relay's request format.
type wireAttachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Messages []wireMessage    `json:"messages"`
	Files    []wireAttachment `json:"files,omitempty"`
}

// chatResponse is the relay's success body.
type chatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Provider  string `json:"provider"`
}

// errorResponse is the relay's error body.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Reply is one assistant reply as returned by the relay.
type Reply struct {
	Response  string
	Timestamp time.Time
	Model     string
	Provider  string
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a relay API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the relay at baseURL. An empty baseURL uses the
// default local relay address.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithTimeout sets the round-trip timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// BaseURL returns the relay address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send posts the conversation history to the relay and returns the reply.
//
// Welcome messages and messages with empty content are filtered out before
// building the payload; the relay validates strictly and the ephemeral
// greeting was never part of the conversation.
func (c *Client) Send(ctx context.Context, history []*model.Message, attachments []model.Attachment) (*Reply, error) {
	req := chatRequest{Messages: make([]wireMessage, 0, len(history))}
	for _, m := range history {
		if m.IsWelcome || m.Content == "" {
			continue
		}
		req.Messages = append(req.Messages, wireMessage{
			Role:    m.Role.String(),
			Content: m.Content,
		})
	}
	for _, a := range attachments {
		req.Files = append(req.Files, wireAttachment{Name: a.Name, Size: a.Size})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.connectionError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &Error{
			Kind:    KindServer,
			Message: fmt.Sprintf("unreadable relay response: %v", err),
		}
	}

	ts, err := time.Parse(time.RFC3339, chatResp.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	return &Reply{
		Response:  chatResp.Response,
		Timestamp: ts,
		Model:     chatResp.Model,
		Provider:  chatResp.Provider,
	}, nil
}

// Health checks the relay's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.connectionError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Kind:    KindServer,
			Message: fmt.Sprintf("relay unhealthy (HTTP %d)", resp.StatusCode),
		}
	}
	return nil
}

// connectionError wraps a transport failure with a startup hint.
func (c *Client) connectionError(err error) *Error {
	return &Error{
		Kind:    KindConnection,
		Message: err.Error(),
		Hint:    fmt.Sprintf("is the relay running at %s? Start it with loom-relay.", c.baseURL),
	}
}

// classifyError maps a non-200 relay response onto the error taxonomy.
func (c *Client) classifyError(resp *http.Response) *Error {
	var errResp errorResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
		if errResp.Details != nil {
			message = fmt.Sprintf("%s (%v)", message, errResp.Details)
		}
	}
	if message == "" {
		message = fmt.Sprintf("relay returned HTTP %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &Error{Kind: KindInvalidRequest, Message: message}
	case http.StatusUnauthorized:
		return &Error{
			Kind:    KindInvalidCredentials,
			Message: message,
			Hint:    "check GROQ_API_KEY on the relay host",
		}
	case http.StatusPaymentRequired:
		return &Error{Kind: KindQuotaExhausted, Message: message}
	case http.StatusTooManyRequests:
		return &Error{
			Kind:    KindRateLimited,
			Message: message,
			Hint:    "wait a moment before retrying",
		}
	default:
		return &Error{Kind: KindServer, Message: message}
	}
}
