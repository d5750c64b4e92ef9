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

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/discovery"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()

	db, err := Open(config.SessionConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})
	return db
}

func testPool() []discovery.Candidate {
	return []discovery.Candidate{
		{ID: "a1", Title: "Nocturne", Artist: "Ada Vane"},
		{ID: "a2", Title: "Tidal Study", Artist: "Bo Ferris"},
	}
}

func TestStoreSaveRestore(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	ctx := context.Background()

	rec := Record{Pool: testPool(), Cursor: 1, OwnerID: "viewer-1"}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Restore(ctx, "viewer-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", got.Cursor)
	}
	if len(got.Pool) != 2 || got.Pool[0].ID != "a1" {
		t.Errorf("pool = %+v, want original pool", got.Pool)
	}
	if got.OwnerID != "viewer-1" {
		t.Errorf("owner = %q, want viewer-1", got.OwnerID)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not stamped on save")
	}
}

func TestStoreRestoreMiss(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)

	_, err := store.Restore(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore err = %v, want ErrNotFound", err)
	}
}

func TestStoreRestoreStale(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	ctx := context.Background()

	// Write an aged record directly, bypassing Save's timestamping.
	rec := Record{Pool: testPool(), OwnerID: "viewer-1", Timestamp: time.Now().Add(-2 * time.Hour)}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKeyPrefix+"viewer-1"), data)
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if _, err := store.Restore(ctx, "viewer-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore stale err = %v, want ErrNotFound", err)
	}

	// The stale record must be gone, not just skipped.
	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(sessionKeyPrefix + "viewer-1"))
		return err
	})
	if !errors.Is(err, badger.ErrKeyNotFound) {
		t.Errorf("stale record still present, get err = %v", err)
	}
}

func TestStoreRestoreForeignOwner(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	ctx := context.Background()

	rec := Record{Pool: testPool(), OwnerID: "viewer-2", Timestamp: time.Now()}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKeyPrefix+"viewer-1"), data)
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if _, err := store.Restore(ctx, "viewer-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore foreign err = %v, want ErrNotFound", err)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, Record{Pool: testPool(), Cursor: 0, OwnerID: "viewer-1"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, Record{Pool: testPool(), Cursor: 1, OwnerID: "viewer-1"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.Restore(ctx, "viewer-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Cursor != 1 {
		t.Errorf("cursor = %d, want latest save (1)", got.Cursor)
	}
}

func TestStoreDelete(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, Record{Pool: testPool(), OwnerID: "viewer-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "viewer-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Restore(ctx, "viewer-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore after delete err = %v, want ErrNotFound", err)
	}
}

func TestStoreProfileRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)
	ctx := context.Background()

	profile := discovery.NewProfile()
	profile.Artists["ada vane"] = 2.6
	profile.Styles["impressionism"] = 0.6
	profile.ViewedIDs["a1"] = struct{}{}

	if err := store.SaveProfile(ctx, "anon-1", profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	got, err := store.LoadProfile(ctx, "anon-1")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if got == nil {
		t.Fatal("load profile returned nil for saved profile")
	}
	if got.Artists["ada vane"] != 2.6 {
		t.Errorf("artist weight = %v, want 2.6", got.Artists["ada vane"])
	}
	if _, ok := got.ViewedIDs["a1"]; !ok {
		t.Error("viewed set lost in round trip")
	}
}

func TestStoreLoadProfileAbsent(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, time.Hour)

	got, err := store.LoadProfile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if got != nil {
		t.Errorf("profile = %+v, want nil for absent owner", got)
	}
}
