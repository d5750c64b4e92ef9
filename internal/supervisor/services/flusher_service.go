// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package services

import (
	"context"
	"time"
)

// Flusher matches the session saver's drain-on-shutdown lifecycle. The
// interface is satisfied by *session.Saver.
type Flusher interface {
	Close(ctx context.Context)
}

// FlusherService keeps a flusher alive for the process lifetime and
// drains it on shutdown. The saver runs its own timers internally; this
// wrapper only orchestrates the final drain so pending session writes
// survive a graceful stop.
type FlusherService struct {
	flusher      Flusher
	drainTimeout time.Duration
	name         string
}

// NewFlusherService creates a flusher service wrapper.
func NewFlusherService(flusher Flusher, drainTimeout time.Duration) *FlusherService {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &FlusherService{
		flusher:      flusher,
		drainTimeout: drainTimeout,
		name:         "session-flusher",
	}
}

// Serve implements suture.Service. Blocks until the context is canceled,
// then drains pending writes under a fresh deadline.
func (f *FlusherService) Serve(ctx context.Context) error {
	<-ctx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), f.drainTimeout)
	defer cancel()

	f.flusher.Close(drainCtx)
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (f *FlusherService) String() string {
	return f.name
}
