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

	"github.com/kaleidorium/discoveryd/internal/discovery"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// Catalog reads and writes artworks.
type Catalog struct {
	db *DB
}

// NewCatalog creates a catalog over the database.
func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

// List returns all artworks in catalog order (newest first). This is the
// candidate pool source for a fresh discovery session.
func (c *Catalog) List(ctx context.Context) ([]discovery.Candidate, error) {
	rows, err := c.db.conn.QueryContext(ctx, `
		SELECT id, title, artist, medium, dimensions, year,
		       genre, style, subject, colour, price, tags, created_at
		FROM artworks
		ORDER BY created_at DESC, id`)
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("query artworks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []discovery.Candidate
	for rows.Next() {
		var cand discovery.Candidate
		var tags any
		if err := rows.Scan(&cand.ID, &cand.Title, &cand.Artist, &cand.Medium,
			&cand.Dimensions, &cand.Year, &cand.Genre, &cand.Style,
			&cand.Subject, &cand.Colour, &cand.Price, &tags, &cand.CreatedAt); err != nil {
			metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("scan artwork: %w", err)
		}
		cand.Tags = tagsFromList(tags)
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("iterate artworks: %w", err)
	}

	metrics.CatalogFetchesTotal.WithLabelValues("success").Inc()
	return out, nil
}

// Get returns one artwork by id, or false when absent.
func (c *Catalog) Get(ctx context.Context, id string) (discovery.Candidate, bool, error) {
	var cand discovery.Candidate
	var tags any
	err := c.db.conn.QueryRowContext(ctx, `
		SELECT id, title, artist, medium, dimensions, year,
		       genre, style, subject, colour, price, tags, created_at
		FROM artworks WHERE id = ?`, id).
		Scan(&cand.ID, &cand.Title, &cand.Artist, &cand.Medium,
			&cand.Dimensions, &cand.Year, &cand.Genre, &cand.Style,
			&cand.Subject, &cand.Colour, &cand.Price, &tags, &cand.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return discovery.Candidate{}, false, nil
		}
		return discovery.Candidate{}, false, fmt.Errorf("get artwork %s: %w", id, err)
	}
	cand.Tags = tagsFromList(tags)
	return cand, true, nil
}

// tagsFromList converts a DuckDB VARCHAR[] scan result to a string slice.
func tagsFromList(v any) []string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Upsert inserts or replaces an artwork.
func (c *Catalog) Upsert(ctx context.Context, cand discovery.Candidate) error {
	tags := make([]any, len(cand.Tags))
	for i, t := range cand.Tags {
		tags[i] = t
	}
	_, err := c.db.conn.ExecContext(ctx, `
		INSERT INTO artworks (id, title, artist, medium, dimensions, year,
		                      genre, style, subject, colour, price, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			medium = excluded.medium,
			dimensions = excluded.dimensions,
			year = excluded.year,
			genre = excluded.genre,
			style = excluded.style,
			subject = excluded.subject,
			colour = excluded.colour,
			price = excluded.price,
			tags = excluded.tags`,
		cand.ID, cand.Title, cand.Artist, cand.Medium, cand.Dimensions,
		cand.Year, cand.Genre, cand.Style, cand.Subject, cand.Colour,
		cand.Price, tags)
	if err != nil {
		return fmt.Errorf("upsert artwork %s: %w", cand.ID, err)
	}
	return nil
}

// Count returns the catalog size.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM artworks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count artworks: %w", err)
	}
	return n, nil
}
