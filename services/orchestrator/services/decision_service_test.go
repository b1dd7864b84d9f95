// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
)

func TestRecentContextWithoutClient(t *testing.T) {
	svc := NewDecisionStoreService(nil, nil)
	assert.Empty(t, svc.RecentContext(context.Background(), "owner-1"))
}

func TestPersistDecisionWithoutClient(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := NewDecisionStoreService(nil, metrics)

	err := svc.PersistDecision(context.Background(), "owner-1", datatypes.Decision{
		Decision: "Ship it",
	})
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
}
