// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package session persists and restores discovery sessions so a viewer
// returning within the staleness window resumes exactly where they left
// off. Records live in BadgerDB and are written through a debounced,
// coalescing saver; teardown saves bypass the debounce.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/discovery"
	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// sessionKeyPrefix namespaces session records in Badger.
const sessionKeyPrefix = "session:"

// profileKeyPrefix namespaces locally persisted anonymous-viewer profiles.
const profileKeyPrefix = "profile:"

// ErrNotFound indicates no usable session record exists for the owner.
var ErrNotFound = errors.New("session not found")

// Record is one persisted discovery session.
type Record struct {
	// Pool is the candidate pool in display order.
	Pool []discovery.Candidate `json:"pool"`

	// Cursor is the viewer's position in Pool. Cursor >= len(Pool) means
	// the session was exhausted.
	Cursor int `json:"cursor"`

	// Timestamp is when the record was saved.
	Timestamp time.Time `json:"timestamp"`

	// OwnerID identifies the viewer the record belongs to.
	OwnerID string `json:"owner_id"`
}

// Store reads and writes session records and anonymous-viewer profiles in
// BadgerDB.
type Store struct {
	db     *badger.DB
	maxAge time.Duration
}

// Open opens the Badger database for session storage.
func Open(cfg config.SessionConfig) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.StorePath)
	opts.Logger = nil // Suppress BadgerDB logs
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for sessions: %w", err)
	}
	return db, nil
}

// NewStore creates a session store over an open Badger database.
func NewStore(db *badger.DB, maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Store{db: db, maxAge: maxAge}
}

// Save writes the record under the owner's session key. The record's
// timestamp is stamped here so callers cannot persist a stale clock.
func (s *Store) Save(ctx context.Context, rec Record) error {
	rec.Timestamp = time.Now()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + rec.OwnerID)
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		return nil
	})
}

// Restore reads the owner's session record. It returns ErrNotFound when no
// record exists, when the record is older than the staleness cutoff, or
// when it belongs to a different owner; stale and foreign records are
// deleted on the way out. These are silent, expected outcomes: the caller
// performs a fresh fetch.
func (s *Store) Restore(ctx context.Context, ownerID string) (*Record, error) {
	var rec Record
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + ownerID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		metrics.SessionRestoresTotal.WithLabelValues("miss").Inc()
		return nil, ErrNotFound
	}

	if rec.OwnerID != ownerID {
		metrics.SessionRestoresTotal.WithLabelValues("foreign").Inc()
		logging.Warn().
			Str("owner", ownerID).
			Str("record_owner", rec.OwnerID).
			Msg("session record owned by another viewer, discarding")
		s.discard(ownerID)
		return nil, ErrNotFound
	}

	if time.Since(rec.Timestamp) > s.maxAge {
		metrics.SessionRestoresTotal.WithLabelValues("stale").Inc()
		s.discard(ownerID)
		return nil, ErrNotFound
	}

	metrics.SessionRestoresTotal.WithLabelValues("hit").Inc()
	return &rec, nil
}

// Delete removes the owner's session record.
func (s *Store) Delete(ctx context.Context, ownerID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKeyPrefix + ownerID))
	})
}

// discard drops an unusable record, logging failures only.
func (s *Store) discard(ownerID string) {
	if err := s.Delete(context.Background(), ownerID); err != nil {
		logging.Debug().Err(err).Str("owner", ownerID).Msg("discard session record")
	}
}

// SaveProfile persists an anonymous viewer's profile locally. Identified
// viewers' profiles live in the durable preference store instead.
func (s *Store) SaveProfile(ctx context.Context, ownerID string, profile *discovery.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profileKeyPrefix+ownerID), data)
	})
}

// LoadProfile reads a locally persisted profile, or nil when absent.
func (s *Store) LoadProfile(ctx context.Context, ownerID string) (*discovery.Profile, error) {
	var profile *discovery.Profile

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profileKeyPrefix + ownerID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			profile = &discovery.Profile{}
			return json.Unmarshal(val, profile)
		})
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// RunGC performs one Badger value-log GC pass. Badger returns an error
// when nothing was rewritten; that is not a failure.
func RunGC(db *badger.DB) {
	if db.Opts().InMemory {
		return
	}
	if err := db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		logging.Debug().Err(err).Msg("badger value log gc")
	}
}
