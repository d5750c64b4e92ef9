// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGuardSingleFlight(t *testing.T) {
	g := NewGuard()

	if !g.TryAcquire() {
		t.Fatal("idle guard refused acquisition")
	}
	if g.TryAcquire() {
		t.Fatal("guard acquired twice")
	}
	if !g.Refreshing() {
		t.Error("guard not reported as refreshing")
	}

	g.Release()
	if !g.TryAcquire() {
		t.Error("released guard refused acquisition")
	}
	g.Release()
}

func TestGuardConcurrentAcquireAdmitsOne(t *testing.T) {
	g := NewGuard()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 1 {
		t.Errorf("admitted %d concurrent refreshes, want 1", admitted.Load())
	}
}

func TestGuardForceResetCountsOnlyStuckResets(t *testing.T) {
	g := NewGuard()

	// Resetting an idle guard is a no-op.
	g.ForceReset()
	if g.DefensiveResets() != 0 {
		t.Errorf("idle reset counted: %d", g.DefensiveResets())
	}

	// Resetting a stuck guard fires the counter and frees it.
	g.TryAcquire()
	g.ForceReset()
	if g.DefensiveResets() != 1 {
		t.Errorf("defensive resets = %d, want 1", g.DefensiveResets())
	}
	if !g.TryAcquire() {
		t.Error("force-reset guard refused acquisition")
	}
	g.Release()
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	g := NewGuard()
	g.TryAcquire()
	g.Release()
	g.Release()

	if !g.TryAcquire() {
		t.Error("guard unusable after double release")
	}
	g.Release()
}
