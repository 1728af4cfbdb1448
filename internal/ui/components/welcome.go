// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/loomchat/loom/internal/ui/styles"
)

// =============================================================================
// WELCOME BANNER
// =============================================================================

// WelcomeBanner renders the greeting shown when a conversation starts.
type WelcomeBanner struct {
	Title    string
	Message  string
	Hints    []string
	MaxWidth int
}

// NewWelcomeBanner creates a banner with the default hints.
func NewWelcomeBanner(message string) WelcomeBanner {
	return WelcomeBanner{
		Title:   "Loom",
		Message: message,
		Hints: []string{
			"/help for commands",
			"/save to keep this conversation",
			"Esc to cancel a reply",
		},
		MaxWidth: 80,
	}
}

// Render returns the banner inside a rounded box.
func (w WelcomeBanner) Render() string {
	maxWidth := w.MaxWidth
	if maxWidth < 30 {
		maxWidth = 30
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Purple).
		Render(w.Title)

	message := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 6).
		Render(w.Message)

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(message)

	if len(w.Hints) > 0 {
		b.WriteString("\n")
		hintStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
		for _, hint := range w.Hints {
			b.WriteString("\n")
			b.WriteString(hintStyle.Render("  " + hint))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Cyan).
		Padding(1, 2).
		MaxWidth(maxWidth).
		Render(b.String())
}
