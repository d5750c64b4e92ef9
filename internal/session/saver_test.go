// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSaverDebounceCoalesces(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	saver := NewSaver(store, 50*time.Millisecond)
	defer saver.Close(context.Background())

	// Three rapid writes inside one debounce window. Only the last state
	// should be persisted.
	saver.Enqueue(Record{Pool: testPool(), Cursor: 0, OwnerID: "viewer-1"})
	saver.Enqueue(Record{Pool: testPool(), Cursor: 1, OwnerID: "viewer-1"})
	saver.Enqueue(Record{Pool: testPool(), Cursor: 2, OwnerID: "viewer-1"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.Restore(context.Background(), "viewer-1")
		if err == nil {
			if got.Cursor != 2 {
				t.Fatalf("cursor = %d, want final enqueued state (2)", got.Cursor)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced save never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSaverIndependentOwners(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	saver := NewSaver(store, 20*time.Millisecond)

	saver.Enqueue(Record{Pool: testPool(), Cursor: 1, OwnerID: "viewer-1"})
	saver.Enqueue(Record{Pool: testPool(), Cursor: 2, OwnerID: "viewer-2"})
	saver.Close(context.Background())

	for owner, want := range map[string]int{"viewer-1": 1, "viewer-2": 2} {
		got, err := store.Restore(context.Background(), owner)
		if err != nil {
			t.Fatalf("restore %s: %v", owner, err)
		}
		if got.Cursor != want {
			t.Errorf("%s cursor = %d, want %d", owner, got.Cursor, want)
		}
	}
}

func TestSaverFlushBypassesDebounce(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	saver := NewSaver(store, time.Minute)
	defer saver.Close(context.Background())

	saver.Enqueue(Record{Pool: testPool(), Cursor: 0, OwnerID: "viewer-1"})
	if err := saver.Flush(context.Background(), Record{Pool: testPool(), Cursor: 3, OwnerID: "viewer-1"}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, err := store.Restore(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Cursor != 3 {
		t.Errorf("cursor = %d, want flushed state (3)", got.Cursor)
	}
}

func TestSaverFlushCancelsPending(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	saver := NewSaver(store, 30*time.Millisecond)
	defer saver.Close(context.Background())

	saver.Enqueue(Record{Pool: testPool(), Cursor: 0, OwnerID: "viewer-1"})
	if err := saver.Flush(context.Background(), Record{Pool: testPool(), Cursor: 5, OwnerID: "viewer-1"}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// Wait past the debounce window; the cancelled pending write must not
	// clobber the flushed state.
	time.Sleep(100 * time.Millisecond)

	got, err := store.Restore(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Cursor != 5 {
		t.Errorf("cursor = %d, want 5 (pending save should have been cancelled)", got.Cursor)
	}
}

func TestSaverCloseWritesPending(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	saver := NewSaver(store, time.Minute)

	saver.Enqueue(Record{Pool: testPool(), Cursor: 4, OwnerID: "viewer-1"})
	saver.Close(context.Background())

	got, err := store.Restore(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("restore after close: %v", err)
	}
	if got.Cursor != 4 {
		t.Errorf("cursor = %d, want 4", got.Cursor)
	}

	// Enqueue after close must be a no-op.
	saver.Enqueue(Record{Pool: testPool(), Cursor: 9, OwnerID: "viewer-3"})
	time.Sleep(20 * time.Millisecond)
	if _, err := store.Restore(context.Background(), "viewer-3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("restore after post-close enqueue err = %v, want ErrNotFound", err)
	}
}
