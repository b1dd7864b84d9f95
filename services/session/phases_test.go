// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

func TestNextPhase(t *testing.T) {
	tests := []struct {
		from   datatypes.Phase
		want   datatypes.Phase
		wantOK bool
	}{
		{datatypes.PhaseDump, datatypes.PhaseClarity, true},
		{datatypes.PhaseClarity, datatypes.PhaseDecision, true},
		{datatypes.PhaseDecision, datatypes.PhasePlanning, true},
		{datatypes.PhasePlanning, datatypes.PhaseExecution, true},
		{datatypes.PhaseExecution, "", false},
		{datatypes.Phase("BOGUS"), "", false},
	}

	for _, tt := range tests {
		got, ok := NextPhase(tt.from)
		assert.Equal(t, tt.wantOK, ok, "from %s", tt.from)
		assert.Equal(t, tt.want, got, "from %s", tt.from)
	}
}

func TestCanAdvance(t *testing.T) {
	assert.NoError(t, CanAdvance(datatypes.PhaseDump))
	assert.NoError(t, CanAdvance(datatypes.PhasePlanning))

	err := CanAdvance(datatypes.PhaseExecution)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, stateErr.Reason, "terminal")

	err = CanAdvance(datatypes.Phase("BOGUS"))
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, stateErr.Reason, "unknown")
}

func TestAdvanceTargetRejectsLeavingDump(t *testing.T) {
	// DUMP is non-terminal, but its successor has no implemented behavior
	// yet, so advancing is rejected with a distinct reason.
	_, err := AdvanceTarget(datatypes.PhaseDump)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, datatypes.PhaseDump, stateErr.Phase)
	assert.Contains(t, stateErr.Reason, "not implemented")
	assert.NotContains(t, stateErr.Reason, "terminal")
}

func TestAdvanceTargetForwardOnly(t *testing.T) {
	next, err := AdvanceTarget(datatypes.PhaseClarity)
	require.NoError(t, err)
	assert.Equal(t, datatypes.PhaseDecision, next)

	_, err = AdvanceTarget(datatypes.PhaseExecution)
	assert.Error(t, err)
}
