// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomchat/loom/internal/client"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/session"
	"github.com/loomchat/loom/internal/ui/styles"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update handles one message and returns the next model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancelReply()
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Cancel):
			if m.Busy() {
				m.cancelReply()
				return m, nil
			}
			if m.showHelp {
				m.showHelp = false
				return m, nil
			}

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Clear):
			m.status = ""
			m.lastErr = nil
			m.refreshViewport()
			return m, nil

		case key.Matches(msg, m.keys.Submit):
			return m.handleSubmit()

		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
			return m, nil

		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
			return m, nil
		}

		// Remaining keys edit the input. The viewport scrolls only through
		// its dedicated bindings above so arrows stay with the textarea.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	case RelayReplyMsg:
		return m.handleRelayReply(msg)

	case StreamUpdateMsg:
		return m.handleStreamUpdate(msg)

	case SaveResultMsg:
		if msg.Err != nil {
			if errors.Is(msg.Err, session.ErrEmptyConversation) {
				m.status = "Nothing to save yet."
			} else {
				m.status = "Save failed: " + msg.Err.Error()
			}
		} else {
			m.status = "Saved as " + msg.ID
		}
		return m, nil

	case LoadResultMsg:
		if msg.Err != nil {
			m.status = "Load failed: " + msg.Err.Error()
		} else {
			m.status = "Loaded " + msg.Conversation.ID
			m.turn++
			m.refreshViewport()
			m.viewport.GotoBottom()
		}
		return m, nil

	case DeleteResultMsg:
		if msg.Err != nil {
			m.status = "Delete failed: " + msg.Err.Error()
		} else {
			// Deleting the active conversation resets it to a fresh one.
			m.status = "Deleted " + msg.ID
			m.turn++
			m.refreshViewport()
		}
		return m, nil

	case ListResultMsg:
		if msg.Err != nil {
			m.status = "List failed: " + msg.Err.Error()
		} else {
			m.status = formatListing(msg.Conversations)
		}
		return m, nil

	case ExportResultMsg:
		if msg.Err != nil {
			m.status = "Export failed: " + msg.Err.Error()
		} else {
			m.status = "Exported to " + msg.Path
		}
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		return m, nil
	}

	// Non-key messages go to every component that animates or scrolls.
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	m.spinner, cmd = m.spinner.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	if m.pending {
		m.refreshViewport()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// =============================================================================
// SUBMIT
// =============================================================================

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if cmd, ok := ParseCommand(input); ok {
		m.textarea.Reset()
		return m.runCommand(cmd)
	}

	if m.Busy() {
		m.status = "Still replying. Press Esc to cancel first."
		return m, nil
	}

	m.textarea.Reset()
	m.status = ""
	m.lastErr = nil

	userMsg := model.NewUserMessage(input)
	userMsg.Attachments = m.attachments
	attachments := m.attachments
	m.attachments = nil
	m.sess.Append(userMsg)
	m.refreshViewport()
	m.viewport.GotoBottom()

	m.turn++
	m.pending = true
	ctx, cancel := context.WithCancel(context.Background())
	m.sendCancel = cancel

	return m, tea.Batch(
		m.spinner.Start(),
		SendCmd(ctx, m.relay, m.sess.Messages(), attachments, m.turn),
		textarea.Blink,
	)
}

// runCommand dispatches a parsed slash command.
func (m *Model) runCommand(cmd Command) (tea.Model, tea.Cmd) {
	switch cmd.Name {
	case "save":
		return m, SaveCmd(m.sess)

	case "new":
		m.cancelReply()
		m.sess.Reset()
		m.turn++
		m.status = "Started a new conversation."
		m.refreshViewport()
		return m, nil

	case "list":
		return m, ListCmd(m.sess)

	case "load":
		if len(cmd.Args) == 0 {
			m.status = "Usage: /load <id>"
			return m, nil
		}
		m.cancelReply()
		return m, LoadCmd(m.sess, cmd.Args[0])

	case "delete":
		if len(cmd.Args) == 0 {
			m.status = "Usage: /delete <id>"
			return m, nil
		}
		return m, DeleteCmd(m.sess, cmd.Args[0])

	case "export":
		format := "md"
		if len(cmd.Args) > 0 {
			format = cmd.Args[0]
		}
		return m, ExportCmd(m.sess.Active().Clone(), format, ".")

	case "clear":
		m.cancelReply()
		m.sess.Active().ClearHistory()
		m.turn++
		m.status = "History cleared."
		m.refreshViewport()
		return m, nil

	case "attach":
		if len(cmd.Args) == 0 {
			m.status = "Usage: /attach <path>"
			return m, nil
		}
		att, err := statAttachment(cmd.Args[0])
		if err != nil {
			m.status = "Attach failed: " + err.Error()
			return m, nil
		}
		m.attachments = append(m.attachments, att)
		m.status = fmt.Sprintf("Attached %s (%d bytes); sent with your next message.", att.Name, att.Size)
		return m, nil

	case "theme":
		if len(cmd.Args) == 0 {
			m.status = "Usage: /theme dark|light|auto"
			return m, nil
		}
		if err := m.setTheme(cmd.Args[0]); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "Theme set to " + cmd.Args[0]
		m.refreshViewport()
		return m, nil

	case "help":
		m.showHelp = !m.showHelp
		return m, nil

	case "quit", "exit":
		m.cancelReply()
		m.quitting = true
		return m, tea.Quit

	default:
		m.status = "Unknown command: /" + cmd.Name + " (see /help)"
		return m, nil
	}
}

// =============================================================================
// REPLY HANDLING
// =============================================================================

func (m *Model) handleRelayReply(msg RelayReplyMsg) (tea.Model, tea.Cmd) {
	// A reply for an earlier turn arrived after the user cancelled or
	// switched conversations.
	if msg.Turn != m.turn {
		return m, nil
	}

	m.pending = false
	m.sendCancel = nil
	m.spinner.Stop()

	if msg.Err != nil {
		var relayErr *client.Error
		if errors.As(msg.Err, &relayErr) {
			m.lastErr = relayErr
		} else {
			m.lastErr = &client.Error{Kind: client.KindServer, Message: msg.Err.Error()}
		}
		m.refreshViewport()
		return m, nil
	}

	m.reply = pendingReply{model: msg.Reply.Model, provider: msg.Reply.Provider}

	ch, gen, err := m.controller.Start(msg.Reply.Response)
	if err != nil {
		// Replay unavailable, commit the full reply at once.
		m.commitAssistant(msg.Reply.Response)
		return m, nil
	}
	m.streaming = true
	m.streamCh = ch
	m.streamGen = gen
	m.partial = ""
	m.refreshViewport()
	return m, WaitForUpdate(ch)
}

func (m *Model) handleStreamUpdate(msg StreamUpdateMsg) (tea.Model, tea.Cmd) {
	if !m.streaming {
		return m, nil
	}
	if !msg.OK {
		m.streaming = false
		m.partial = ""
		m.refreshViewport()
		return m, nil
	}
	// Updates from a replay that was already replaced are dropped, and the
	// old channel is no longer listened on.
	if msg.Update.Generation != m.streamGen {
		return m, nil
	}

	if msg.Update.Cancelled {
		m.streaming = false
		m.partial = ""
		m.refreshViewport()
		return m, nil
	}

	if msg.Update.Done {
		m.streaming = false
		m.partial = ""
		m.commitAssistant(msg.Update.Prefix)
		return m, nil
	}

	m.partial = msg.Update.Prefix
	m.refreshViewport()
	return m, WaitForUpdate(m.streamCh)
}

// commitAssistant appends the finished reply to the conversation and saves
// the exchange, matching the autosave-on-reply behavior of the web client.
func (m *Model) commitAssistant(content string) {
	m.sess.Append(model.NewAssistantMessage(content, m.reply.model, m.reply.provider))
	if conv, err := m.sess.SaveActive(); err == nil {
		m.status = "Saved " + conv.ID
	}
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// statAttachment builds attachment metadata for a local file. Only the name
// and size travel to the relay.
func statAttachment(path string) (model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Attachment{}, err
	}
	if info.IsDir() {
		return model.Attachment{}, fmt.Errorf("%s is a directory", path)
	}
	return model.Attachment{Name: filepath.Base(path), Size: info.Size()}, nil
}

// setTheme rebuilds the style set for a new mode.
func (m *Model) setTheme(name string) error {
	var mode styles.Mode
	switch name {
	case "dark":
		mode = styles.ModeDark
	case "light":
		mode = styles.ModeLight
	case "auto":
		mode = styles.ModeAuto
	default:
		return fmt.Errorf("unknown theme %q (dark, light or auto)", name)
	}
	m.cfg.UI.Theme = name
	m.theme = styles.NewThemeWithMode(mode)
	m.theme.SetSize(m.width, m.height)
	return nil
}
