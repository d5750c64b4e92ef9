// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package main is the entry point for the discoveryd server.
//
// Discoveryd serves a preference-weighted art discovery feed. Viewers
// page through a ranked pool of artworks; every like, dislike and
// collection add reshapes their preference profile and re-ranks what
// they see next.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: settings from environment variables and config file (Koanf v2)
//  2. Catalog store: DuckDB holding artworks and durable viewer profiles
//  3. Session store: Badger holding in-flight sessions and anonymous profiles
//  4. Ranking: local scorer, plus the optional delegated ranker for
//     identified viewers (OpenAI-compatible endpoint behind a circuit breaker)
//  5. HTTP server: the feed API under a suture supervision tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults.
//
// Delegated ranking is optional:
//   - DISCOVERYD_DELEGATE_ENABLED=true
//   - DISCOVERYD_DELEGATE_API_KEY: key for the ranking endpoint
//   - DISCOVERYD_DELEGATE_MODEL: model name
//
// External search augmentation is optional:
//   - DISCOVERYD_SEARCH_ENABLED=true
//   - DISCOVERYD_SEARCH_URL: search endpoint
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests, flushes pending
// session saves and closes both stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaleidorium/discoveryd/internal/api"
	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/delegate"
	"github.com/kaleidorium/discoveryd/internal/discovery"
	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/search"
	"github.com/kaleidorium/discoveryd/internal/session"
	"github.com/kaleidorium/discoveryd/internal/store"
	"github.com/kaleidorium/discoveryd/internal/supervisor"
	"github.com/kaleidorium/discoveryd/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("session_path", cfg.Session.StorePath).
		Bool("delegate_enabled", cfg.Delegate.Enabled).
		Bool("search_enabled", cfg.Search.Enabled).
		Msg("Starting discoveryd")

	db, err := store.Open(cfg.Database)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open catalog store")
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog store")
		}
	}()

	catalog := store.NewCatalog(db)
	profiles := store.NewProfileStore(db)

	sessionDB, err := session.Open(cfg.Session)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open session store")
		os.Exit(1)
	}
	defer func() {
		if err := sessionDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	sessions := session.NewStore(sessionDB, cfg.Session.MaxAge)
	saver := session.NewSaver(sessions, cfg.Session.SaveDebounce)

	// Delegated ranking is best-effort; a disabled or misconfigured
	// delegate leaves the local scorer in charge.
	var ranker discovery.Ranker
	llmRanker, err := delegate.New(cfg.Delegate)
	switch {
	case err == nil:
		ranker = llmRanker
		logging.Info().Str("model", cfg.Delegate.Model).Msg("Delegated ranking enabled")
	case errors.Is(err, delegate.ErrDisabled):
		logging.Info().Msg("Delegated ranking disabled, ranking locally")
	default:
		logging.Warn().Err(err).Msg("Delegated ranker unavailable, ranking locally")
	}

	var searcher discovery.Searcher
	if client := search.New(cfg.Search); client != nil {
		searcher = client
		logging.Info().Str("url", cfg.Search.URL).Msg("Search augmentation enabled")
	}

	orch := discovery.NewOrchestrator(cfg.Engine, ranker)
	filter := discovery.NewFilterEngine(searcher)

	handler := api.NewHandler(cfg.Server, orch, filter, catalog, profiles, sessions, saver)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree, err := supervisor.NewTree(logging.Slog(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		os.Exit(1)
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	tree.AddStorageService(services.NewFlusherService(saver, 10*time.Second))
	tree.AddStorageService(services.NewMaintenanceService("badger-gc", cfg.Session.GCInterval,
		func(ctx context.Context) { session.RunGC(sessionDB) }))
	tree.AddStorageService(services.NewMaintenanceService("state-prune", 10*time.Minute,
		func(ctx context.Context) { handler.Prune() }))
	tree.AddStorageService(services.NewMaintenanceService("catalog-warm", 5*time.Minute,
		func(ctx context.Context) {
			if _, err := catalog.Count(ctx); err != nil {
				logging.Warn().Err(err).Msg("catalog warm query failed")
			}
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished).
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Discoveryd stopped gracefully")
}
