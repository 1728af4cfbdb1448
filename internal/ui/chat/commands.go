// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomchat/loom/internal/client"
	"github.com/loomchat/loom/internal/export"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/session"
	"github.com/loomchat/loom/internal/stream"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command is a parsed slash command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a "/name arg..." input line. Returns ok=false when the
// line is not a slash command.
func ParseCommand(input string) (Command, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, "/"))
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// CommandHelp lists the available slash commands for the help overlay.
func CommandHelp() []string {
	return []string{
		"/save           save the conversation",
		"/new            start a fresh conversation",
		"/list           show saved conversations",
		"/load <id>      load a saved conversation",
		"/delete <id>    delete a saved conversation",
		"/export [fmt]   export as md, txt or json",
		"/attach <path>  attach file metadata to the next message",
		"/theme <mode>   switch theme: dark, light or auto",
		"/clear          clear the current history",
		"/help           toggle this help",
		"/quit           exit",
	}
}

// =============================================================================
// RELAY COMMANDS
// =============================================================================

// SendCmd posts the history to the relay and reports the reply tagged with
// the turn that produced it.
func SendCmd(ctx context.Context, relay *client.Client, history []*model.Message, attachments []model.Attachment, turn int) tea.Cmd {
	return func() tea.Msg {
		reply, err := relay.Send(ctx, history, attachments)
		return RelayReplyMsg{Turn: turn, Reply: reply, Err: err}
	}
}

// WaitForUpdate blocks on the stream channel and delivers the next update.
func WaitForUpdate(ch <-chan stream.Update) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		return StreamUpdateMsg{Update: update, OK: ok}
	}
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

// SaveCmd saves the active conversation.
func SaveCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		conv, err := sess.SaveActive()
		if err != nil {
			return SaveResultMsg{Err: err}
		}
		return SaveResultMsg{ID: conv.ID}
	}
}

// LoadCmd loads a stored conversation into the session.
func LoadCmd(sess *session.Session, id string) tea.Cmd {
	return func() tea.Msg {
		conv, err := sess.Load(id)
		return LoadResultMsg{Conversation: conv, Err: err}
	}
}

// DeleteCmd deletes a stored conversation.
func DeleteCmd(sess *session.Session, id string) tea.Cmd {
	return func() tea.Msg {
		err := sess.Delete(id)
		return DeleteResultMsg{ID: id, Err: err}
	}
}

// ListCmd fetches the stored conversations, newest first.
func ListCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		convs, err := sess.List()
		return ListResultMsg{Conversations: convs, Err: err}
	}
}

// ExportCmd writes the conversation to a dated file in outputDir.
func ExportCmd(conv *model.Conversation, format, outputDir string) tea.Cmd {
	return func() tea.Msg {
		opts := export.DefaultOptions()
		opts.OutputDir = outputDir
		exporter, err := export.ForFormat(format, opts)
		if err != nil {
			return ExportResultMsg{Err: err}
		}
		path, err := export.ExportToFile(conv, exporter, opts)
		return ExportResultMsg{Path: path, Err: err}
	}
}

// formatListing renders the /list output as plain text.
func formatListing(convs []*model.Conversation) string {
	if len(convs) == 0 {
		return "No saved conversations. Use /save to keep one."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d saved conversation(s):\n", len(convs)))
	for _, c := range convs {
		b.WriteString(fmt.Sprintf("  %s  %s  (%d messages, %s)\n",
			c.ID, c.Title, len(c.Messages), c.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return strings.TrimRight(b.String(), "\n")
}
