// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

func TestMemoryStoreSweepIdleRemovesOnlyStale(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	old1, err := store.Create(ctx, "alice")
	require.NoError(t, err)
	old2, err := store.Create(ctx, "bob")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)

	fresh, err := store.Create(ctx, "alice")
	require.NoError(t, err)

	removed, err := store.SweepIdle(ctx, cutoff)
	require.NoError(t, err)

	removedIDs := make([]string, 0, len(removed))
	for _, sess := range removed {
		removedIDs = append(removedIDs, sess.ID)
	}
	assert.ElementsMatch(t, []string{old1.ID, old2.ID}, removedIDs)

	_, err = store.Get(ctx, old1.ID)
	assert.IsType(t, &ErrSessionNotFound{}, err)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestMemoryStoreSweepIdleCanceledContext(t *testing.T) {
	store := NewMemoryStore()
	sess, err := store.Create(context.Background(), "alice")
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.SweepIdle(canceled, time.Now().UTC().Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Get(context.Background(), sess.ID)
	assert.NoError(t, err)
}

func TestSweeperRunNow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stale, err := store.Create(ctx, "alice")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	fresh, err := store.Create(ctx, "alice")
	require.NoError(t, err)

	var removedIDs []string
	sweeper := NewSweeper(store, SweeperConfig{
		Interval: time.Hour,
		MaxIdle:  5 * time.Millisecond,
	}, func(sess datatypes.Session) {
		removedIDs = append(removedIDs, sess.ID)
	})

	result, err := sweeper.RunNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []string{stale.ID}, removedIDs)
	assert.False(t, result.Finished.Before(result.Started))

	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestSweeperStartStopLifecycle(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(), SweeperConfig{}, nil)
	ctx := context.Background()

	require.NoError(t, sweeper.Start(ctx))
	assert.Error(t, sweeper.Start(ctx))

	require.NoError(t, sweeper.Stop())
	assert.NoError(t, sweeper.Stop())

	// Restart after a clean stop is allowed.
	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Stop())
}

func TestNewSweeperAppliesDefaults(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(), SweeperConfig{}, nil)
	defaults := DefaultSweeperConfig()

	assert.Equal(t, defaults.Interval, sweeper.config.Interval)
	assert.Equal(t, defaults.MaxIdle, sweeper.config.MaxIdle)
}
