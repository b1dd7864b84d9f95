// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// =============================================================================
// Idle Session Sweeper
// =============================================================================

// SweepStore is the narrow store surface the sweeper needs.
type SweepStore interface {
	// SweepIdle removes sessions whose last update is before olderThan
	// and returns the removed headers.
	SweepIdle(ctx context.Context, olderThan time.Time) ([]datatypes.Session, error)
}

// SweeperConfig controls the background idle-session sweep.
//
// # Fields
//
//   - Interval: How often a sweep cycle runs.
//   - MaxIdle: Sessions untouched for longer than this are removed.
type SweeperConfig struct {
	Interval time.Duration
	MaxIdle  time.Duration
}

// DefaultSweeperConfig returns the production sweep settings.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: 1 * time.Hour,
		MaxIdle:  24 * time.Hour,
	}
}

// SweepResult summarizes one sweep cycle.
type SweepResult struct {
	Started  time.Time
	Finished time.Time
	Removed  int
}

// DurationMs returns the cycle duration in milliseconds.
func (r SweepResult) DurationMs() int64 {
	return r.Finished.Sub(r.Started).Milliseconds()
}

// Sweeper periodically drops idle sessions from a store.
//
// # Description
//
// The in-memory store keeps sessions for the life of the process, so an
// abandoned session would otherwise hold its message log forever. The
// sweeper runs a background goroutine that removes sessions idle past
// MaxIdle. Uses the ticker + done channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Sweeper struct {
	store     SweepStore
	config    SweeperConfig
	onRemoved func(datatypes.Session)
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewSweeper creates a sweeper over the given store.
//
// # Inputs
//
//   - store: Store to sweep. Must not be nil.
//   - config: Sweep settings. Zero fields fall back to defaults.
//   - onRemoved: Called once per removed session. May be nil.
func NewSweeper(store SweepStore, config SweeperConfig, onRemoved func(datatypes.Session)) *Sweeper {
	defaults := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.MaxIdle <= 0 {
		config.MaxIdle = defaults.MaxIdle
	}
	return &Sweeper{
		store:     store,
		config:    config,
		onRemoved: onRemoved,
	}
}

// Start launches the background sweep loop. Returns an error if the
// sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	slog.Info("Idle session sweeper starting",
		"interval", s.config.Interval.String(),
		"max_idle", s.config.MaxIdle.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	slog.Info("Idle session sweeper stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow performs a sweep cycle immediately, outside the schedule.
func (s *Sweeper) RunNow(ctx context.Context) (SweepResult, error) {
	return s.runSweepCycle(ctx)
}

func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Idle session sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("Idle session sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep runs one cycle and keeps errors from killing the loop.
func (s *Sweeper) executeSweep(ctx context.Context) {
	result, err := s.runSweepCycle(ctx)
	if err != nil {
		slog.Error("Idle session sweep failed", "error", err)
		return
	}

	if result.Removed > 0 {
		slog.Info("Idle session sweep completed",
			"removed", result.Removed,
			"duration_ms", result.DurationMs(),
		)
	} else {
		slog.Debug("Idle session sweep completed (no idle sessions)")
	}
}

func (s *Sweeper) runSweepCycle(ctx context.Context) (SweepResult, error) {
	result := SweepResult{Started: time.Now().UTC()}

	cutoff := result.Started.Add(-s.config.MaxIdle)
	removed, err := s.store.SweepIdle(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("sweep cycle failed: %w", err)
	}

	result.Removed = len(removed)
	result.Finished = time.Now().UTC()

	if s.onRemoved != nil {
		for _, sess := range removed {
			s.onRemoved(sess)
		}
	}

	return result, nil
}
