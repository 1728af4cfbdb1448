// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea chat view for Loom.
package chat

import (
	"github.com/loomchat/loom/internal/client"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/stream"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// RelayReplyMsg carries the relay's reply (or its error) back into the
// update loop. Turn identifies which send produced it so replies that
// arrive after the conversation moved on are discarded.
type RelayReplyMsg struct {
	Turn  int
	Reply *client.Reply
	Err   error
}

// StreamUpdateMsg carries one update from the typing replay. OK is false
// when the stream channel closed without a final update.
type StreamUpdateMsg struct {
	Update stream.Update
	OK     bool
}

// SaveResultMsg reports the outcome of saving the active conversation.
type SaveResultMsg struct {
	ID  string
	Err error
}

// LoadResultMsg reports the outcome of loading a conversation.
type LoadResultMsg struct {
	Conversation *model.Conversation
	Err          error
}

// DeleteResultMsg reports the outcome of deleting a conversation.
type DeleteResultMsg struct {
	ID  string
	Err error
}

// ListResultMsg carries the stored conversations for the /list view.
type ListResultMsg struct {
	Conversations []*model.Conversation
	Err           error
}

// ExportResultMsg reports the outcome of exporting the conversation.
type ExportResultMsg struct {
	Path string
	Err  error
}

// StatusMsg sets a transient status line.
type StatusMsg string
