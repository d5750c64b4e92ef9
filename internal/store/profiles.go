// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/kaleidorium/discoveryd/internal/discovery"
	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// ProfileStore persists identified viewers' preference profiles as a JSON
// column keyed by viewer id.
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a profile store over the database.
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Get returns the viewer's stored profile, or nil when none exists.
func (p *ProfileStore) Get(ctx context.Context, viewerID string) (*discovery.Profile, error) {
	var raw string
	err := p.db.conn.QueryRowContext(ctx,
		`SELECT profile FROM profiles WHERE viewer_id = ?`, viewerID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		metrics.ProfileStoreErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("get profile %s: %w", viewerID, err)
	}

	profile := &discovery.Profile{}
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		metrics.ProfileStoreErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal profile %s: %w", viewerID, err)
	}
	return profile, nil
}

// Put upserts the viewer's profile.
func (p *ProfileStore) Put(ctx context.Context, viewerID string, profile *discovery.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		metrics.ProfileStoreErrorsTotal.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal profile %s: %w", viewerID, err)
	}

	// DuckDB resolves a bare CURRENT_TIMESTAMP in the DO UPDATE clause as
	// a column reference, so the timestamp goes in as now().
	_, err = p.db.conn.ExecContext(ctx, `
		INSERT INTO profiles (viewer_id, profile, updated_at)
		VALUES (?, ?, now())
		ON CONFLICT (viewer_id) DO UPDATE SET
			profile = excluded.profile,
			updated_at = now()`,
		viewerID, string(data))
	if err != nil {
		metrics.ProfileStoreErrorsTotal.WithLabelValues("put").Inc()
		return fmt.Errorf("put profile %s: %w", viewerID, err)
	}
	return nil
}

// PutAsync writes the profile in the background. Persistence of preference
// updates must never block or fail the feed request, so errors are logged
// and counted only.
func (p *ProfileStore) PutAsync(viewerID string, profile *discovery.Profile) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		if err := p.Put(ctx, viewerID, profile); err != nil {
			logging.Warn().Err(err).Str("viewer", viewerID).Msg("background profile write failed")
		}
	}()
}

// Delete removes the viewer's profile.
func (p *ProfileStore) Delete(ctx context.Context, viewerID string) error {
	if _, err := p.db.conn.ExecContext(ctx,
		`DELETE FROM profiles WHERE viewer_id = ?`, viewerID); err != nil {
		metrics.ProfileStoreErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("delete profile %s: %w", viewerID, err)
	}
	return nil
}
