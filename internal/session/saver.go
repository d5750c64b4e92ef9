// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package session

import (
	"context"
	"sync"
	"time"

	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// Saver coalesces rapid session writes per owner. Feed interactions can
// arrive several times per second; only the latest state per owner is
// worth persisting, so each Enqueue replaces any pending record and
// restarts that owner's debounce timer. Flush writes immediately and is
// used on teardown, where the debounce window would lose the final state.
type Saver struct {
	store    *Store
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
}

type pendingSave struct {
	rec   Record
	timer *time.Timer
}

// NewSaver creates a saver over the store with the given debounce window.
func NewSaver(store *Store, debounce time.Duration) *Saver {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Saver{
		store:    store,
		debounce: debounce,
		pending:  make(map[string]*pendingSave),
	}
}

// Enqueue schedules a debounced save for the record's owner. A pending
// save for the same owner is replaced and its timer restarted, so a burst
// of interactions produces a single write carrying the final state.
func (s *Saver) Enqueue(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if p, ok := s.pending[rec.OwnerID]; ok {
		p.rec = rec
		p.timer.Reset(s.debounce)
		return
	}

	p := &pendingSave{rec: rec}
	owner := rec.OwnerID
	p.timer = time.AfterFunc(s.debounce, func() {
		s.fire(owner)
	})
	s.pending[owner] = p
}

// Flush writes the record immediately, cancelling any pending debounced
// save for the same owner.
func (s *Saver) Flush(ctx context.Context, rec Record) error {
	s.mu.Lock()
	if p, ok := s.pending[rec.OwnerID]; ok {
		p.timer.Stop()
		delete(s.pending, rec.OwnerID)
	}
	s.mu.Unlock()

	metrics.SessionSavesTotal.WithLabelValues("immediate").Inc()
	return s.store.Save(ctx, rec)
}

// Close writes out all pending saves and stops the saver. Enqueue after
// Close is a no-op.
func (s *Saver) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	remaining := make([]Record, 0, len(s.pending))
	for owner, p := range s.pending {
		p.timer.Stop()
		remaining = append(remaining, p.rec)
		delete(s.pending, owner)
	}
	s.mu.Unlock()

	for _, rec := range remaining {
		if err := s.store.Save(ctx, rec); err != nil {
			logging.Warn().Err(err).Str("owner", rec.OwnerID).Msg("flush session on close")
		} else {
			metrics.SessionSavesTotal.WithLabelValues("debounced").Inc()
		}
	}
}

// fire performs the debounced write for one owner.
func (s *Saver) fire(owner string) {
	s.mu.Lock()
	p, ok := s.pending[owner]
	if !ok {
		s.mu.Unlock()
		return
	}
	rec := p.rec
	delete(s.pending, owner)
	s.mu.Unlock()

	if err := s.store.Save(context.Background(), rec); err != nil {
		logging.Warn().Err(err).Str("owner", owner).Msg("debounced session save")
		return
	}
	metrics.SessionSavesTotal.WithLabelValues("debounced").Inc()
}
