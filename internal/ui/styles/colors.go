// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// ============================================================================
// ADAPTIVE COLOR PALETTE
// ============================================================================

// AdaptiveColor pairs resolve against the detected terminal background.
// Light is used on light backgrounds, Dark on dark backgrounds.

var (
	// Accent colors.
	Purple  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Cyan    = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	Rose    = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	Amber   = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

	// Surfaces.
	Surface    = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#F1F5F9", Dark: "#181825"}
	Overlay    = lipgloss.AdaptiveColor{Light: "#E2E8F0", Dark: "#313244"}

	// Text.
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#475569", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#6C7086"}

	// Chat bubbles.
	UserBubbleBorder      = Purple
	UserBubbleText        = TextPrimary
	AssistantBubbleBorder = Cyan
	AssistantBubbleText   = TextPrimary
	SystemBubbleBorder    = Amber
	SystemBubbleText      = TextSecondary
)

// ============================================================================
// INLINE RENDER HELPERS
// ============================================================================

// RenderSuccess renders s in the success accent color.
func RenderSuccess(s string) string {
	return lipgloss.NewStyle().Foreground(Emerald).Render(s)
}

// RenderError renders s in the error accent color.
func RenderError(s string) string {
	return lipgloss.NewStyle().Foreground(Rose).Render(s)
}

// RenderWarning renders s in the warning accent color.
func RenderWarning(s string) string {
	return lipgloss.NewStyle().Foreground(Amber).Render(s)
}

// RenderInfo renders s in the info accent color.
func RenderInfo(s string) string {
	return lipgloss.NewStyle().Foreground(Cyan).Render(s)
}

// RenderMuted renders s in the muted text color.
func RenderMuted(s string) string {
	return lipgloss.NewStyle().Foreground(TextMuted).Render(s)
}
