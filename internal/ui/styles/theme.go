// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ============================================================================
// THEME
// ============================================================================

// Mode selects which background the adaptive palette resolves against.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// Theme holds the resolved styles for the chat interface. Build one with
// NewTheme and rebuild after a resize with SetSize.
type Theme struct {
	mode    Mode
	isDark  bool
	profile termenv.Profile
	width   int
	height  int

	// Chrome.
	Header    lipgloss.Style
	StatusBar lipgloss.Style
	HelpText  lipgloss.Style

	// Chat bubbles.
	UserBubble      lipgloss.Style
	UserLabel       lipgloss.Style
	AssistantBubble lipgloss.Style
	AssistantLabel  lipgloss.Style
	SystemBubble    lipgloss.Style
	Timestamp       lipgloss.Style

	// Input area.
	InputBox    lipgloss.Style
	InputPrompt lipgloss.Style

	// Feedback.
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ErrorBox     lipgloss.Style
	ErrorTitle   lipgloss.Style
	ErrorHint    lipgloss.Style

	// Session list.
	ListTitle    lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
}

// NewTheme detects the terminal's color profile and background and builds
// the style set for it.
func NewTheme() *Theme {
	return NewThemeWithMode(ModeAuto)
}

// NewThemeWithMode builds a theme forcing a dark or light palette, or
// detecting the terminal background when mode is auto.
func NewThemeWithMode(mode Mode) *Theme {
	t := &Theme{
		mode:    mode,
		profile: termenv.ColorProfile(),
		width:   80,
		height:  24,
	}
	switch mode {
	case ModeDark:
		t.isDark = true
	case ModeLight:
		t.isDark = false
	default:
		t.isDark = termenv.HasDarkBackground()
	}
	t.initStyles()
	return t
}

// IsDark reports whether the theme resolved to the dark palette.
func (t *Theme) IsDark() bool { return t.isDark }

// Mode returns the mode the theme was built with.
func (t *Theme) Mode() Mode { return t.mode }

// SetSize records the terminal size and rebuilds width-dependent styles.
func (t *Theme) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	t.width = width
	t.height = height
	t.initStyles()
}

// Width returns the current terminal width.
func (t *Theme) Width() int { return t.width }

// BubbleWidth returns the maximum content width for a chat bubble.
func (t *Theme) BubbleWidth() int {
	w := t.width * 3 / 4
	if w < 20 {
		w = 20
	}
	return w
}

func (t *Theme) initStyles() {
	bubbleWidth := t.BubbleWidth()

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1).
		Width(t.width)

	t.HelpText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)

	t.UserBubble = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Foreground(UserBubbleText).
		Padding(0, 1).
		MaxWidth(bubbleWidth)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.AssistantBubble = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Foreground(AssistantBubbleText).
		Padding(0, 1).
		MaxWidth(bubbleWidth)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.SystemBubble = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(SystemBubbleBorder).
		Foreground(SystemBubbleText).
		Padding(0, 1).
		MaxWidth(bubbleWidth)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.InputBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1).
		Width(t.width - 2)

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ErrorBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1).
		MaxWidth(bubbleWidth)

	t.ErrorTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	t.ErrorHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ListTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		Padding(0, 1)

	t.ListItem = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)

	t.ListSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary).
		Background(Overlay).
		Padding(0, 2)
}
