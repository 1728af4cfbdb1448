// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream simulates token streaming for responses that arrive whole.
//
// The relay returns a complete reply in one shot; the controller replays it
// as a growing rune prefix on a fixed tick so the UI can render the familiar
// typing effect. One stream runs at a time, and every stream carries a
// generation token so late updates from a cancelled stream are discardable.
package stream

import (
	"errors"
	"sync"
	"time"
)

// DefaultInterval is the tick between prefix updates.
const DefaultInterval = 15 * time.Millisecond

// ErrAlreadyStreaming indicates Start was called while a stream is active.
var ErrAlreadyStreaming = errors.New("a stream is already active")

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStreaming
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Update is one emission from an active stream. Prefix always holds the
// text revealed so far; rune boundaries are never split.
type Update struct {
	// Generation identifies which Start call produced this update.
	Generation uint64

	// Prefix is the revealed portion of the full reply.
	Prefix string

	// Done is set on the final update of a completed stream, with Prefix
	// equal to the full reply.
	Done bool

	// Cancelled is set on the final update of a cancelled stream. The
	// prefix stops where cancellation landed.
	Cancelled bool
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller replays one reply at a time as timed prefix updates.
type Controller struct {
	mu         sync.Mutex
	state      State
	generation uint64
	interval   time.Duration
	cancel     chan struct{}
}

// NewController creates an idle controller with the default tick interval.
func NewController() *Controller {
	return &Controller{interval: DefaultInterval}
}

// NewControllerWithInterval creates a controller with a custom tick interval.
// Non-positive intervals fall back to the default.
func NewControllerWithInterval(interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{interval: interval}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation returns the token of the most recent stream. Updates carrying
// an older generation are stale.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Start begins replaying full as a stream of growing prefixes. It returns
// the update channel and the generation token for this stream. The channel
// is closed after the final (Done or Cancelled) update.
//
// Only one stream may be active; Start during StateStreaming returns
// ErrAlreadyStreaming.
func (c *Controller) Start(full string) (<-chan Update, uint64, error) {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return nil, 0, ErrAlreadyStreaming
	}
	c.state = StateStreaming
	c.generation++
	gen := c.generation
	c.cancel = make(chan struct{})
	cancel := c.cancel
	interval := c.interval
	c.mu.Unlock()

	// Buffered for the whole stream so a slow consumer can never wedge the
	// replay goroutine.
	runes := []rune(full)
	updates := make(chan Update, len(runes)+2)

	go c.run(runes, gen, interval, cancel, updates)
	return updates, gen, nil
}

// Cancel stops the active stream and returns the controller to idle at
// once; the stream's final update (Cancelled set) may trail behind and is
// identified by its generation. Cancelling an idle controller is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStreaming || c.cancel == nil {
		return
	}
	close(c.cancel)
	c.cancel = nil
	c.state = StateIdle
}

// run replays the reply rune by rune until completion or cancellation.
func (c *Controller) run(runes []rune, gen uint64, interval time.Duration, cancel <-chan struct{}, updates chan<- Update) {
	defer close(updates)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 1; i <= len(runes); i++ {
		select {
		case <-cancel:
			updates <- Update{Generation: gen, Prefix: string(runes[:i-1]), Cancelled: true}
			c.finish(gen)
			return
		case <-ticker.C:
			if i == len(runes) {
				updates <- Update{Generation: gen, Prefix: string(runes), Done: true}
				c.finish(gen)
				return
			}
			updates <- Update{Generation: gen, Prefix: string(runes[:i])}
		}
	}

	// Empty reply: complete immediately.
	updates <- Update{Generation: gen, Prefix: "", Done: true}
	c.finish(gen)
}

// finish returns the controller to idle, unless a newer stream already took
// over the state.
func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.state = StateIdle
		c.cancel = nil
	}
}
