// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loomchat/loom/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "loom.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testConversation(id, content string) *model.Conversation {
	conv := model.NewConversation()
	conv.ID = id
	conv.AddUserMessage(content)
	return conv
}

func TestLoadAllEmpty(t *testing.T) {
	store := newTestStore(t)

	convs, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(convs) != 0 {
		t.Errorf("LoadAll on fresh store = %d conversations, want 0", len(convs))
	}
}

func TestUpsertAndGet(t *testing.T) {
	store := newTestStore(t)

	conv := testConversation("conv_1", "hello world")
	if err := store.Upsert(conv); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get("conv_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "conv_1" {
		t.Errorf("ID = %q, want %q", got.ID, "conv_1")
	}
	if got.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", got.MessageCount())
	}
	if got.Title != "hello world" {
		t.Errorf("Title = %q, want %q", got.Title, "hello world")
	}
}

func TestUpsertIdempotent(t *testing.T) {
	store := newTestStore(t)

	conv := testConversation("conv_1", "hello")
	if err := store.Upsert(conv); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if err := store.Upsert(conv); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	convs, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(convs) != 1 {
		t.Errorf("collection has %d conversations after double save, want 1", len(convs))
	}
}

func TestUpsertMovesToFront(t *testing.T) {
	store := newTestStore(t)

	a := testConversation("conv_a", "first")
	b := testConversation("conv_b", "second")
	a.UpdatedAt = time.Now().Add(-time.Hour)
	b.UpdatedAt = time.Now().Add(-time.Minute)

	if err := store.Upsert(a); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(b); err != nil {
		t.Fatal(err)
	}

	a.AddUserMessage("updated")
	if err := store.Upsert(a); err != nil {
		t.Fatal(err)
	}

	convs, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("collection has %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "conv_a" {
		t.Errorf("front of collection = %q, want conv_a", convs[0].ID)
	}
}

func TestUpsertRejectsMissingID(t *testing.T) {
	store := newTestStore(t)
	if err := store.Upsert(model.NewConversation()); err == nil {
		t.Error("Upsert accepted a conversation without an ID")
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert(testConversation("conv_1", "hi")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("conv_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("conv_1"); !errors.Is(err, ErrNotFound) {
		t.Error("conversation still present after Delete")
	}

	if err := store.Delete("conv_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"conv_1", "conv_2", "conv_3"} {
		if err := store.Upsert(testConversation(id, "msg")); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after Clear = %d, want 0", count)
	}
}

func TestCorruptCollectionRecovers(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)`,
		collectionKey, "{not valid json"); err != nil {
		t.Fatalf("seeding corrupt value failed: %v", err)
	}

	convs, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll on corrupt value failed: %v", err)
	}
	if len(convs) != 0 {
		t.Errorf("LoadAll on corrupt value = %d conversations, want 0", len(convs))
	}

	// The store must remain writable after recovery.
	if err := store.Upsert(testConversation("conv_1", "back")); err != nil {
		t.Errorf("Upsert after corruption failed: %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Upsert(testConversation("conv_1", "survives restart")); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("conv_1")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Title != "survives restart" {
		t.Errorf("Title = %q, want %q", got.Title, "survives restart")
	}
}
