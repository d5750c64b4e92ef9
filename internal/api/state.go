// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package api

import (
	"sync"
	"time"

	"github.com/kaleidorium/discoveryd/internal/discovery"
)

// viewerState is one viewer's in-memory discovery session. All fields
// except guard are protected by mu; the guard has its own atomics and is
// checked before mu is taken so concurrent refreshes are dropped instead
// of queued.
type viewerState struct {
	mu sync.Mutex

	profile *discovery.Profile
	pool    []discovery.Candidate
	cursor  int

	// loaded is set after the first feed request restored or created the
	// session, so later requests skip storage lookups.
	loaded bool

	// freshPool marks a pool seeded straight from the catalog rather than
	// a restored session; it has never been ranked for this viewer.
	freshPool bool

	// refreshHint requests a background delegated re-rank after a restored
	// session for an identified viewer. Consumed by the next feed request.
	refreshHint bool

	guard    *discovery.Guard
	lastSeen time.Time
}

// stateRegistry holds per-viewer states. States idle past the TTL are
// evicted by Prune; their persisted session records outlive them.
type stateRegistry struct {
	mu     sync.RWMutex
	states map[string]*viewerState
	ttl    time.Duration
}

func newStateRegistry(ttl time.Duration) *stateRegistry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &stateRegistry{
		states: make(map[string]*viewerState),
		ttl:    ttl,
	}
}

// acquire returns the viewer's state, creating it on first contact.
func (r *stateRegistry) acquire(viewerID string) *viewerState {
	r.mu.RLock()
	st, ok := r.states[viewerID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.states[viewerID]; ok {
		return st
	}
	st = &viewerState{
		guard:    discovery.NewGuard(),
		lastSeen: time.Now(),
	}
	r.states[viewerID] = st
	return st
}

// remove drops the viewer's in-memory state.
func (r *stateRegistry) remove(viewerID string) {
	r.mu.Lock()
	delete(r.states, viewerID)
	r.mu.Unlock()
}

// prune evicts states idle past the TTL and returns how many were dropped.
func (r *stateRegistry) prune() int {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, st := range r.states {
		if st.lastSeen.Before(cutoff) && !st.guard.Refreshing() {
			delete(r.states, id)
			dropped++
		}
	}
	return dropped
}

// size returns the number of live states.
func (r *stateRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
