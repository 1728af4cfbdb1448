// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomchat/loom/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is file metadata carried alongside a user message. Only the
// name and size travel over the wire; file contents stay on the client.
type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Cosmetic labels reported by the relay for assistant messages.
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	// Attachments carried with user messages (metadata only).
	Attachments []Attachment `json:"attachments,omitempty"`

	// Ephemeral greeting shown on startup. Never persisted and never sent
	// to the relay.
	IsWelcome bool `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message with the given content
// and the cosmetic model/provider labels returned by the relay.
func NewAssistantMessage(content, modelLabel, providerLabel string) *Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Model = modelLabel
	msg.Provider = providerLabel
	return msg
}

// NewWelcomeMessage creates the ephemeral assistant greeting shown when a
// fresh conversation opens.
func NewWelcomeMessage(content string) *Message {
	msg := NewMessage(RoleAssistant, content)
	msg.IsWelcome = true
	return msg
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}
