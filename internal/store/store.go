// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package store provides DuckDB-backed persistence for the artwork catalog
// and for identified viewers' durable preference profiles.
//
// Profile writes are advisory: a failed write is logged and counted but
// never fails the request that triggered it, because the in-memory profile
// remains authoritative for the running session.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/logging"
)

// storeWriteTimeout bounds background profile writes.
const storeWriteTimeout = 5 * time.Second

// DB wraps the DuckDB connection shared by the catalog and profile stores.
type DB struct {
	conn *sql.DB
}

// Open opens the DuckDB database and creates the schema.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

// initialize creates the schema if it does not exist.
func (db *DB) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS artworks (
			id VARCHAR PRIMARY KEY,
			title VARCHAR NOT NULL,
			artist VARCHAR NOT NULL,
			medium VARCHAR DEFAULT '',
			dimensions VARCHAR DEFAULT '',
			year VARCHAR DEFAULT '',
			genre VARCHAR DEFAULT '',
			style VARCHAR DEFAULT '',
			subject VARCHAR DEFAULT '',
			colour VARCHAR DEFAULT '',
			price VARCHAR DEFAULT '',
			tags VARCHAR[] DEFAULT [],
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			viewer_id VARCHAR PRIMARY KEY,
			profile JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artworks_artist ON artworks(artist)`,
		`CREATE INDEX IF NOT EXISTS idx_artworks_created_at ON artworks(created_at)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Conn returns the underlying SQL connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("close database connection")
	}
}
