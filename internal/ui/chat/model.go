// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomchat/loom/internal/client"
	"github.com/loomchat/loom/internal/config"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/session"
	"github.com/loomchat/loom/internal/stream"
	"github.com/loomchat/loom/internal/ui/components"
	"github.com/loomchat/loom/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// pendingReply holds reply metadata between the relay response arriving and
// the typing replay finishing, when the assistant message is committed.
type pendingReply struct {
	model    string
	provider string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	cfg   *config.Config
	theme *styles.Theme
	sess  *session.Session
	relay *client.Client

	controller *stream.Controller

	textarea textarea.Model
	viewport viewport.Model
	spinner  components.Spinner
	markdown *components.MarkdownRenderer
	keys     KeyMap

	width  int
	height int
	ready  bool

	// turn increments on every send. A reply tagged with an older turn
	// belongs to a conversation the user has already left and is dropped.
	turn       int
	pending    bool
	sendCancel context.CancelFunc

	// Typing replay state.
	streaming bool
	streamCh  <-chan stream.Update
	streamGen uint64
	partial   string
	reply     pendingReply

	// Attachment metadata queued by /attach for the next message.
	attachments []model.Attachment

	// welcome is rendered at the top of the transcript but never joins the
	// conversation, so it is not persisted and not sent to the relay.
	welcome *model.Message

	status   string
	lastErr  *client.Error
	showHelp bool
	quitting bool
}

// New builds the chat model. The stream interval comes from the config.
func New(cfg *config.Config, sess *session.Session, relay *client.Client) *Model {
	mode := styles.ModeAuto
	switch cfg.UI.Theme {
	case "dark":
		mode = styles.ModeDark
	case "light":
		mode = styles.ModeLight
	}
	theme := styles.NewThemeWithMode(mode)

	ta := textarea.New()
	ta.Placeholder = "Ask anything, or /help for commands"
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	m := &Model{
		cfg:        cfg,
		theme:      theme,
		sess:       sess,
		relay:      relay,
		controller: stream.NewControllerWithInterval(cfg.StreamInterval()),
		textarea:   ta,
		spinner:    components.NewSpinner(),
		markdown:   components.NewMarkdownRenderer(theme.BubbleWidth()),
		keys:       DefaultKeyMap(),
		width:      80,
		height:     24,
	}

	if cfg.UI.WelcomeMessage != "" {
		m.welcome = model.NewWelcomeMessage(cfg.UI.WelcomeMessage)
	}
	return m
}

// Init starts the textarea blink.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Busy reports whether a reply is in flight or replaying.
func (m *Model) Busy() bool {
	return m.pending || m.streaming
}

// resize lays out the viewport and input for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.markdown.SetWidth(m.theme.BubbleWidth())
	m.textarea.SetWidth(width - 4)

	// Header, input box and status bar take fixed rows.
	viewportHeight := height - m.textarea.Height() - 6
	if viewportHeight < 3 {
		viewportHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewportHeight
	}
	m.refreshViewport()
}

// refreshViewport rerenders the transcript and keeps the view pinned to the
// bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// cancelReply aborts whatever stage the reply is in. A pending network call
// is cancelled through its context; a typing replay through the controller.
// The turn is advanced so a late reply for the old turn is discarded.
func (m *Model) cancelReply() {
	if m.pending {
		if m.sendCancel != nil {
			m.sendCancel()
			m.sendCancel = nil
		}
		m.pending = false
		m.turn++
		m.spinner.Stop()
		m.status = "Cancelled."
	}
	if m.streaming {
		m.controller.Cancel()
		m.streaming = false
		m.partial = ""
		m.status = "Cancelled."
	}
	m.refreshViewport()
}
