// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"sync/atomic"

	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

const (
	guardIdle int32 = iota
	guardRefreshing
)

// Guard is a single-flight guard around pool refresh operations. While a
// refresh is in flight, concurrent refresh requests are dropped, not
// queued. State transitions use compare-and-set; there is no lock to leak.
type Guard struct {
	state atomic.Int32

	// defensiveResets counts ForceReset calls that actually cleared a
	// stuck guard. Any non-zero value indicates a caller failed to
	// Release, which is a logic error upstream.
	defensiveResets atomic.Int64
}

// NewGuard returns an idle guard.
func NewGuard() *Guard {
	return &Guard{}
}

// TryAcquire attempts to move the guard from idle to refreshing.
// It returns false when a refresh is already in flight.
func (g *Guard) TryAcquire() bool {
	ok := g.state.CompareAndSwap(guardIdle, guardRefreshing)
	if !ok {
		metrics.RefreshesDroppedTotal.Inc()
	}
	return ok
}

// Release returns the guard to idle. It must be called on every completion
// path, success or failure.
func (g *Guard) Release() {
	g.state.Store(guardIdle)
}

// Refreshing reports whether a refresh is currently in flight.
func (g *Guard) Refreshing() bool {
	return g.state.Load() == guardRefreshing
}

// ForceReset clears the guard if it is stuck in the refreshing state.
// Callers use it defensively when they can prove no refresh is running;
// a reset that actually fires is counted and logged because it means a
// Release was missed somewhere.
func (g *Guard) ForceReset() {
	if g.state.CompareAndSwap(guardRefreshing, guardIdle) {
		g.defensiveResets.Add(1)
		metrics.GuardDefensiveResetsTotal.Inc()
		logging.Warn().
			Int64("defensive_resets", g.defensiveResets.Load()).
			Msg("fetch guard force-reset while marked refreshing")
	}
}

// DefensiveResets returns how many ForceReset calls cleared a stuck guard.
func (g *Guard) DefensiveResets() int64 {
	return g.defensiveResets.Load()
}
