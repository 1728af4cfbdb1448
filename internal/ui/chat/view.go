// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(m.renderHelp())
		b.WriteString("\n")
	}

	b.WriteString(m.theme.InputBox.Render(m.textarea.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.theme.Header.Render("Loom")
	conv := m.sess.Active()
	sub := ""
	if conv.ID != "" {
		sub = m.theme.Timestamp.Render(conv.ID + "  " + conv.Title)
	} else if conv.Title != "" {
		sub = m.theme.Timestamp.Render(conv.Title)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", sub)
}

// renderTranscript builds the scrollable conversation body.
func (m *Model) renderTranscript() string {
	var parts []string

	if m.welcome != nil {
		banner := components.NewWelcomeBanner(m.welcome.Content)
		banner.MaxWidth = m.theme.BubbleWidth()
		parts = append(parts, banner.Render())
	}

	for _, msg := range m.sess.Messages() {
		parts = append(parts, m.renderMessage(msg))
	}

	if m.streaming {
		parts = append(parts, m.renderPartial())
	} else if m.pending {
		parts = append(parts, m.spinner.View())
	}

	if m.lastErr != nil {
		parts = append(parts, m.renderError())
	}

	return strings.Join(parts, "\n\n")
}

func (m *Model) renderMessage(msg *model.Message) string {
	ts := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	switch msg.Role {
	case model.RoleUser:
		label := m.theme.UserLabel.Render(msg.Role.DisplayName()) + " " + ts
		body := msg.Content
		for _, att := range msg.Attachments {
			body += "\n" + m.theme.Timestamp.Render(fmt.Sprintf("[%s, %d bytes]", att.Name, att.Size))
		}
		return label + "\n" + m.theme.UserBubble.Render(body)

	case model.RoleAssistant:
		label := m.theme.AssistantLabel.Render(msg.Role.DisplayName()) + " " + ts
		if msg.Model != "" {
			label += " " + m.theme.Timestamp.Render("via "+msg.Model)
		}
		rendered := m.markdown.Render(msg.Content)
		return label + "\n" + m.theme.AssistantBubble.Render(rendered)

	default:
		return m.theme.SystemBubble.Render(msg.Content)
	}
}

// renderPartial shows the in-progress typing replay as plain text. Markdown
// rendering waits until the reply is complete so half-open fences do not
// garble the view.
func (m *Model) renderPartial() string {
	label := m.theme.AssistantLabel.Render("Assistant")
	return label + "\n" + m.theme.AssistantBubble.Render(m.partial+"|")
}

// renderError shows a relay failure as an assistant-role notice in the
// transcript, in the place the reply would have taken. The user message
// that triggered it stays in history.
func (m *Model) renderError() string {
	label := m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName())
	title := m.theme.ErrorTitle.Render(m.lastErr.Kind.String())
	content := title + "\n" + m.lastErr.Message
	if m.lastErr.Hint != "" {
		content += "\n" + m.theme.ErrorHint.Render(m.lastErr.Hint)
	}
	return label + "\n" + m.theme.ErrorBox.Render(content)
}

func (m *Model) renderHelp() string {
	lines := append([]string{"Commands:"}, CommandHelp()...)
	lines = append(lines, "", "Keys: Enter send, Esc cancel, C-h help, C-c quit")
	return m.theme.SystemBubble.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderStatusBar() string {
	if m.status != "" {
		return m.theme.StatusBar.Render(m.status)
	}
	var state string
	switch {
	case m.pending:
		state = "Waiting for reply..."
	case m.streaming:
		state = "Replying..."
	default:
		state = "Ready"
	}
	right := m.cfg.Upstream.ModelLabel
	return m.theme.StatusBar.Render(state + "  |  " + right)
}
