// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package supervisor provides the suture-based supervision tree for
// discoveryd.
//
// The tree isolates failures into two layers under a common root:
//
//	discoveryd (root)
//	├── storage-layer: session flusher, Badger GC, state pruning
//	└── api-layer:     HTTP server
//
// Services are wrapped with the adapters in the services subpackage,
// which translate blocking lifecycles (http.Server.ListenAndServe,
// ticker loops, Close-on-shutdown flushers) into suture's context-aware
// Serve pattern. Suture restarts a crashed service with exponential
// backoff; the configured failure threshold and decay bound restart
// storms.
//
// Supervisor events are logged through sutureslog, bridged onto the
// global zerolog logger via logging.Slog().
package supervisor
