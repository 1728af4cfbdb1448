// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the plain-terminal chat loop used when the TUI is
// unavailable or disabled with --plain.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/loomchat/loom/internal/client"
	"github.com/loomchat/loom/internal/config"
	"github.com/loomchat/loom/internal/export"
	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/session"
	"github.com/loomchat/loom/internal/stream"
	"github.com/loomchat/loom/internal/ui/components"
	"github.com/loomchat/loom/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)
)

// =============================================================================
// INPUT
// =============================================================================

// Input wraps liner with persistent history in the config directory.
type Input struct {
	line        *liner.State
	historyFile string
}

// NewInput creates a line reader and loads saved history.
func NewInput() *Input {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &Input{
		line:        line,
		historyFile: filepath.Join(dir, "history"),
	}
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

// Read reads one line with history navigation.
func (in *Input) Read(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (in *Input) Close() {
	if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		in.line.WriteHistory(f)
		f.Close()
	}
	in.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// REPL is the plain-terminal chat loop.
type REPL struct {
	cfg        *config.Config
	sess       *session.Session
	relay      *client.Client
	controller *stream.Controller
	markdown   *components.MarkdownRenderer
	input      *Input

	// sendCancel aborts the in-flight relay request on Ctrl+C. The signal
	// goroutine reads it while send writes it, so access goes through mu.
	mu         sync.Mutex
	sendCancel context.CancelFunc

	// attachments queued by /attach for the next message.
	attachments []model.Attachment
}

// NewREPL builds the chat loop.
func NewREPL(cfg *config.Config, sess *session.Session, relay *client.Client) *REPL {
	return &REPL{
		cfg:        cfg,
		sess:       sess,
		relay:      relay,
		controller: stream.NewControllerWithInterval(cfg.StreamInterval()),
		markdown:   components.NewMarkdownRenderer(80),
		input:      NewInput(),
	}
}

// Run drives the read-eval loop until the user exits.
func (r *REPL) Run() error {
	defer r.input.Close()

	r.printWelcome()

	// Ctrl+C during a reply cancels it instead of killing the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			r.cancelSend()
			r.controller.Cancel()
		}
	}()

	for {
		input, err := r.input.Read(promptStyle.Render("loom> "))
		if err != nil {
			// ErrPromptAborted is Ctrl+C at an empty prompt, io.EOF is
			// Ctrl+D. Both exit cleanly.
			if !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
			}
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := r.runCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if quit {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		if err := r.send(input); err != nil {
			r.printError(err)
		}
	}
}

func (r *REPL) printWelcome() {
	fmt.Println(welcomeStyle.Render("Loom"))
	if r.cfg.UI.WelcomeMessage != "" {
		fmt.Println(infoStyle.Render(r.cfg.UI.WelcomeMessage))
	}
	fmt.Println(infoStyle.Render("Type /help for commands, Ctrl+C to cancel a reply, Ctrl+D to exit."))
	fmt.Println()
}

// =============================================================================
// MESSAGE ROUND TRIP
// =============================================================================

// send posts the history to the relay and replays the reply with the typing
// effect.
func (r *REPL) send(input string) error {
	userMsg := model.NewUserMessage(input)
	userMsg.Attachments = r.attachments
	attachments := r.attachments
	r.attachments = nil
	r.sess.Append(userMsg)

	ctx, cancel := context.WithCancel(context.Background())
	r.setSendCancel(cancel)
	reply, err := r.relay.Send(ctx, r.sess.Messages(), attachments)
	r.setSendCancel(nil)
	cancel()
	if err != nil {
		return err
	}

	ch, _, startErr := r.controller.Start(reply.Response)
	if startErr != nil {
		// Replay unavailable, print the reply at once.
		fmt.Println(r.markdown.Render(reply.Response))
		r.sess.Append(model.NewAssistantMessage(reply.Response, reply.Model, reply.Provider))
		r.sess.SaveActive()
		return nil
	}

	printed := 0
	cancelled := false
	for update := range ch {
		if update.Cancelled {
			cancelled = true
			break
		}
		fmt.Print(update.Prefix[printed:])
		printed = len(update.Prefix)
		if update.Done {
			break
		}
	}
	fmt.Println()

	if cancelled {
		fmt.Println(warningStyle.Render("[Cancelled]"))
		return nil
	}

	r.sess.Append(model.NewAssistantMessage(reply.Response, reply.Model, reply.Provider))
	// Autosave the exchange like the autosave-on-reply web client.
	if conv, err := r.sess.SaveActive(); err == nil {
		fmt.Println(infoStyle.Render("(saved as " + conv.ID + ")"))
	}
	return nil
}

// setSendCancel records the cancel func for the in-flight request, or clears
// it when the request finishes.
func (r *REPL) setSendCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	r.sendCancel = cancel
	r.mu.Unlock()
}

// cancelSend aborts the in-flight relay request, if any.
func (r *REPL) cancelSend() {
	r.mu.Lock()
	cancel := r.sendCancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *REPL) printError(err error) {
	var relayErr *client.Error
	if errors.As(err, &relayErr) {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("["+relayErr.Kind.String()+"]"), relayErr.Message)
		if relayErr.Hint != "" {
			fmt.Fprintln(os.Stderr, infoStyle.Render("  hint: "+relayErr.Hint))
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// runCommand executes a slash command. Returns true when the loop should
// exit.
func (r *REPL) runCommand(input string) (bool, error) {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "help":
		printHelp()
		return false, nil

	case "save":
		conv, err := r.sess.SaveActive()
		if err != nil {
			if errors.Is(err, session.ErrEmptyConversation) {
				fmt.Println(infoStyle.Render("Nothing to save yet."))
				return false, nil
			}
			return false, err
		}
		fmt.Println(infoStyle.Render("Saved as " + conv.ID))
		return false, nil

	case "new":
		r.sess.Reset()
		fmt.Println(infoStyle.Render("Started a new conversation."))
		return false, nil

	case "list":
		convs, err := r.sess.List()
		if err != nil {
			return false, err
		}
		if len(convs) == 0 {
			fmt.Println(infoStyle.Render("No saved conversations."))
			return false, nil
		}
		for _, c := range convs {
			fmt.Printf("  %s  %s  (%d messages)\n", c.ID, c.Title, len(c.Messages))
		}
		return false, nil

	case "load":
		if len(args) == 0 {
			return false, errors.New("usage: /load <id>")
		}
		conv, err := r.sess.Load(args[0])
		if err != nil {
			return false, err
		}
		fmt.Println(infoStyle.Render("Loaded " + conv.ID))
		for _, msg := range conv.Messages {
			fmt.Printf("%s %s\n", promptStyle.Render(msg.Role.DisplayName()+":"), msg.Content)
		}
		return false, nil

	case "delete":
		if len(args) == 0 {
			return false, errors.New("usage: /delete <id>")
		}
		if err := r.sess.Delete(args[0]); err != nil {
			return false, err
		}
		fmt.Println(infoStyle.Render("Deleted " + args[0]))
		return false, nil

	case "export":
		format := "md"
		if len(args) > 0 {
			format = args[0]
		}
		opts := export.DefaultOptions()
		exporter, err := export.ForFormat(format, opts)
		if err != nil {
			return false, err
		}
		path, err := export.ExportToFile(r.sess.Active().Clone(), exporter, opts)
		if err != nil {
			return false, err
		}
		fmt.Println(infoStyle.Render("Exported to " + path))
		return false, nil

	case "attach":
		if len(args) == 0 {
			return false, errors.New("usage: /attach <path>")
		}
		info, err := os.Stat(args[0])
		if err != nil {
			return false, err
		}
		if info.IsDir() {
			return false, fmt.Errorf("%s is a directory", args[0])
		}
		att := model.Attachment{Name: filepath.Base(args[0]), Size: info.Size()}
		r.attachments = append(r.attachments, att)
		fmt.Println(infoStyle.Render(fmt.Sprintf("Attached %s (%d bytes); sent with your next message.", att.Name, att.Size)))
		return false, nil

	case "clear":
		r.sess.Active().ClearHistory()
		fmt.Println(infoStyle.Render("History cleared."))
		return false, nil

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command: /%s (see /help)", name)
	}
}

func printHelp() {
	lines := []string{
		"/save           save the conversation",
		"/new            start a fresh conversation",
		"/list           show saved conversations",
		"/load <id>      load a saved conversation",
		"/delete <id>    delete a saved conversation",
		"/export [fmt]   export as md, txt or json",
		"/attach <path>  attach file metadata to the next message",
		"/clear          clear the current history",
		"/quit           exit",
	}
	for _, l := range lines {
		fmt.Println(infoStyle.Render("  " + l))
	}
}
