// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package services

import (
	"context"
	"time"
)

// MaintenanceService runs a periodic maintenance function under
// supervision. discoveryd uses it for Badger value-log GC, viewer state
// pruning and rate limiter pruning.
//
// The run function logs its own failures; a failed pass must not restart
// the loop. A panic inside a tick trips suture's restart machinery.
type MaintenanceService struct {
	run      func(ctx context.Context)
	interval time.Duration
	name     string
}

// NewMaintenanceService creates a maintenance loop running fn every
// interval.
func NewMaintenanceService(name string, interval time.Duration, fn func(ctx context.Context)) *MaintenanceService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MaintenanceService{
		run:      fn,
		interval: interval,
		name:     name,
	}
}

// Serve implements suture.Service.
func (m *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.run(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (m *MaintenanceService) String() string {
	return m.name
}
