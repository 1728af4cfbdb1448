// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversation collections in a local SQLite
// key/value table.
//
// The entire collection lives under a single namespaced key, serialized as
// one JSON document. Writes are read-modify-write under a store-wide lock,
// so concurrent callers never interleave partial updates.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/loomchat/loom/internal/model"
)

// collectionKey is the single key holding the serialized conversation list.
const collectionKey = "loom.conversations"

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// StoreError wraps a storage failure with operation context.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// =============================================================================
// STORE
// =============================================================================

// Store is a SQLite-backed conversation store.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens (or creates) the store at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	// The store is single-writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, &StoreError{Op: "migrate", Err: err}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// COLLECTION OPERATIONS
// =============================================================================

// LoadAll returns every stored conversation, most recently updated first.
// A missing or unreadable collection yields an empty slice: corrupt state is
// logged and discarded rather than wedging startup.
func (s *Store) LoadAll() ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// SaveAll replaces the stored collection.
func (s *Store) SaveAll(convs []*model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(convs)
}

// Upsert inserts or replaces one conversation and moves it to the front of
// the collection.
func (s *Store) Upsert(conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return &StoreError{Op: "upsert", Err: errors.New("conversation has no ID")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.loadLocked()
	if err != nil {
		return err
	}

	next := make([]*model.Conversation, 0, len(convs)+1)
	next = append(next, conv.Clone())
	for _, c := range convs {
		if c.ID != conv.ID {
			next = append(next, c)
		}
	}
	return s.saveLocked(next)
}

// Get returns the conversation with the given ID, or ErrNotFound.
func (s *Store) Get(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return nil, &StoreError{Op: "get", ID: id, Err: ErrNotFound}
}

// Delete removes the conversation with the given ID, or returns ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.loadLocked()
	if err != nil {
		return err
	}

	next := make([]*model.Conversation, 0, len(convs))
	found := false
	for _, c := range convs {
		if c.ID == id {
			found = true
			continue
		}
		next = append(next, c)
	}
	if !found {
		return &StoreError{Op: "delete", ID: id, Err: ErrNotFound}
	}
	return s.saveLocked(next)
}

// Clear removes every stored conversation.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, collectionKey); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	return nil
}

// Count returns the number of stored conversations.
func (s *Store) Count() (int, error) {
	convs, err := s.LoadAll()
	if err != nil {
		return 0, err
	}
	return len(convs), nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) loadLocked() ([]*model.Conversation, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, collectionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []*model.Conversation{}, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "load", Err: err}
	}

	var convs []*model.Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		log.Printf("STORAGE_CORRUPT | key=%s err=%v", collectionKey, err)
		return []*model.Conversation{}, nil
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *Store) saveLocked(convs []*model.Conversation) error {
	data, err := json.Marshal(convs)
	if err != nil {
		return &StoreError{Op: "save", Err: err}
	}

	if _, err := s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		collectionKey, string(data)); err != nil {
		return &StoreError{Op: "save", Err: err}
	}
	return nil
}
