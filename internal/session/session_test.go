// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/loomchat/loom/internal/model"
	"github.com/loomchat/loom/internal/storage"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "loom.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestSaveEmptyConversation(t *testing.T) {
	sess := newTestSession(t)

	_, err := sess.SaveActive()
	if !errors.Is(err, ErrEmptyConversation) {
		t.Errorf("SaveActive on empty = %v, want ErrEmptyConversation", err)
	}

	convs, _ := sess.List()
	if len(convs) != 0 {
		t.Errorf("empty save persisted %d conversations, want 0", len(convs))
	}
}

func TestSaveAssignsIDOnce(t *testing.T) {
	sess := newTestSession(t)
	sess.Append(model.NewUserMessage("hello"))

	saved, err := sess.SaveActive()
	if err != nil {
		t.Fatalf("SaveActive failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("SaveActive did not assign an ID")
	}
	firstID := saved.ID

	sess.Append(model.NewAssistantMessage("hi", "Llama 3.3 70B (Free)", "Groq"))
	saved, err = sess.SaveActive()
	if err != nil {
		t.Fatalf("second SaveActive failed: %v", err)
	}
	if saved.ID != firstID {
		t.Errorf("second save changed ID: %q -> %q", firstID, saved.ID)
	}

	convs, err := sess.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(convs) != 1 {
		t.Errorf("double save produced %d conversations, want 1", len(convs))
	}
	if convs[0].MessageCount() != 2 {
		t.Errorf("stored conversation has %d messages, want 2", convs[0].MessageCount())
	}
}

func TestLoadReplacesActive(t *testing.T) {
	sess := newTestSession(t)
	sess.Append(model.NewUserMessage("first conversation"))
	saved, err := sess.SaveActive()
	if err != nil {
		t.Fatal(err)
	}

	sess.Reset()
	sess.Append(model.NewUserMessage("scratch work"))

	loaded, err := sess.Load(saved.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Title != "first conversation" {
		t.Errorf("loaded Title = %q, want %q", loaded.Title, "first conversation")
	}
	if sess.Active().ID != saved.ID {
		t.Errorf("active ID = %q, want %q", sess.Active().ID, saved.ID)
	}
}

func TestLoadThenSaveKeepsIdentity(t *testing.T) {
	sess := newTestSession(t)
	sess.Append(model.NewUserMessage("hello"))
	saved, err := sess.SaveActive()
	if err != nil {
		t.Fatal(err)
	}
	id := saved.ID

	if _, err := sess.Load(id); err != nil {
		t.Fatal(err)
	}
	sess.Append(model.NewUserMessage("more"))
	if _, err := sess.SaveActive(); err != nil {
		t.Fatal(err)
	}

	convs, _ := sess.List()
	if len(convs) != 1 {
		t.Errorf("load+save produced %d conversations, want 1", len(convs))
	}
	if convs[0].ID != id {
		t.Errorf("ID after load+save = %q, want %q", convs[0].ID, id)
	}
}

func TestLoadMissing(t *testing.T) {
	sess := newTestSession(t)
	if _, err := sess.Load("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteActiveResetsConversation(t *testing.T) {
	sess := newTestSession(t)
	sess.Append(model.NewUserMessage("hello"))
	saved, err := sess.SaveActive()
	if err != nil {
		t.Fatal(err)
	}

	if err := sess.Delete(saved.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if sess.Active().ID != "" {
		t.Error("active conversation kept deleted ID")
	}

	// Deleting the active conversation resets to a fresh empty one.
	if sess.Active().MessageCount() != 0 {
		t.Errorf("active messages = %d after self-delete, want 0", sess.Active().MessageCount())
	}
	if _, err := sess.SaveActive(); !errors.Is(err, ErrEmptyConversation) {
		t.Errorf("SaveActive after self-delete error = %v, want ErrEmptyConversation", err)
	}
}

func TestDeleteOtherKeepsActive(t *testing.T) {
	sess := newTestSession(t)
	sess.Append(model.NewUserMessage("first"))
	saved, err := sess.SaveActive()
	if err != nil {
		t.Fatal(err)
	}

	sess.Reset()
	sess.Append(model.NewUserMessage("second"))

	if err := sess.Delete(saved.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if sess.Active().MessageCount() != 1 {
		t.Errorf("active messages = %d after deleting another conversation, want 1", sess.Active().MessageCount())
	}
}

func TestDeleteMissing(t *testing.T) {
	sess := newTestSession(t)
	if err := sess.Delete("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrNotFound", err)
	}
}

func TestResetDiscardsUnsaved(t *testing.T) {
	sess := newTestSession(t)
	sess.Append(model.NewUserMessage("unsaved"))
	sess.Reset()

	if !sess.Active().IsEmpty() {
		t.Error("Reset kept messages")
	}
	convs, _ := sess.List()
	if len(convs) != 0 {
		t.Errorf("Reset persisted %d conversations, want 0", len(convs))
	}
}

func TestConcurrentIDAssignmentUnique(t *testing.T) {
	sess := newTestSession(t)
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		sess.Append(model.NewUserMessage("msg"))
		saved, err := sess.SaveActive()
		if err != nil {
			t.Fatal(err)
		}
		id := saved.ID
		sess.Reset()
		if seen[id] {
			t.Fatalf("duplicate conversation ID %q", id)
		}
		seen[id] = true
	}
}
