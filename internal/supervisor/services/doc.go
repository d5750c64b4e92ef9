// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package services provides suture.Service adapters for discoveryd's
// long-running components.
//
// Each adapter translates a component's native lifecycle into suture's
// Serve(ctx) pattern:
//
//   - HTTPServerService: http.Server's blocking ListenAndServe plus
//     graceful Shutdown
//   - MaintenanceService: a ticker-driven maintenance function (Badger
//     GC, state pruning)
//   - FlusherService: the session saver's drain-on-shutdown Close
//
// Adapters depend on small interfaces rather than concrete types so
// tests can substitute mocks.
package services
