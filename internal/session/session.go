// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the active conversation and its lifecycle against
// the conversation store: implicit creation on first save, load, delete,
// and reset.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/storage"
)

// ErrEmptyConversation indicates a save was requested with no messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// =============================================================================
// SESSION
// =============================================================================

// Session owns the active conversation. All mutation goes through the
// session so saves always observe a consistent history.
type Session struct {
	mu     sync.Mutex
	store  *storage.Store
	active *model.Conversation

	// lastID breaks millisecond-timestamp collisions when conversations are
	// created in quick succession.
	lastID string
	seq    int
}

// New creates a session backed by the given store, starting with an empty
// conversation.
func New(store *storage.Store) *Session {
	return &Session{
		store:  store,
		active: model.NewConversation(),
	}
}

// Active returns the active conversation. Callers must not retain the
// pointer across Load/Reset.
func (s *Session) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Messages returns the active conversation's messages.
func (s *Session) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Messages
}

// Append adds a message to the active conversation.
func (s *Session) Append(msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.AddMessage(msg)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// SaveActive persists the active conversation. A conversation with no
// messages returns ErrEmptyConversation and writes nothing. On the first
// save the conversation is assigned a timestamp-based ID; subsequent saves
// reuse it, so saving twice never duplicates.
func (s *Session) SaveActive() (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active.IsEmpty() {
		return nil, ErrEmptyConversation
	}

	if s.active.ID == "" {
		s.active.ID = s.nextID()
	}
	s.active.UpdatedAt = time.Now()

	if err := s.store.Upsert(s.active); err != nil {
		return nil, err
	}
	return s.active, nil
}

// Load replaces the active conversation with a stored one. The previous
// active conversation is discarded; callers save first if they want it kept.
func (s *Session) Load(id string) (*model.Conversation, error) {
	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conv
	return conv, nil
}

// Delete removes a stored conversation. Deleting the active conversation
// resets the session to a fresh empty one.
func (s *Session) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active.ID == id {
		s.active = model.NewConversation()
	}
	return nil
}

// Reset abandons the active conversation and starts an empty one. Nothing is
// saved; already-persisted conversations are untouched.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = model.NewConversation()
}

// List returns all stored conversations, most recently updated first.
func (s *Session) List() ([]*model.Conversation, error) {
	return s.store.LoadAll()
}

// ClearAll deletes every stored conversation and resets the active one.
func (s *Session) ClearAll() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.Reset()
	return nil
}

// nextID builds a millisecond-timestamp conversation ID. Within the same
// millisecond a sequence suffix keeps IDs unique. Caller holds s.mu.
func (s *Session) nextID() string {
	id := fmt.Sprintf("conv_%d", time.Now().UnixMilli())
	if id == s.lastID {
		s.seq++
		return fmt.Sprintf("%s_%d", id, s.seq)
	}
	s.lastID = id
	s.seq = 0
	return id
}
