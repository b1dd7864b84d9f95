// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

func TestNewPolicyLoadsAllPhases(t *testing.T) {
	policy, err := NewPolicy()
	require.NoError(t, err)

	for _, phase := range datatypes.PhaseOrder {
		pr, ok := policy.Rules(phase)
		require.True(t, ok, "missing rules for phase %s", phase)
		assert.Equal(t, phase, pr.Phase)
		assert.NotEmpty(t, pr.SystemPrompt)
	}

	dump, _ := policy.Rules(datatypes.PhaseDump)
	assert.True(t, dump.Implemented)
	assert.InDelta(t, 0.4, dump.Sampling.Temperature, 0.001)
	assert.Equal(t, 150, dump.Sampling.MaxTokens)
	assert.InDelta(t, 0.9, dump.Sampling.TopP, 0.001)
	assert.Equal(t, 1, dump.MinLines)
	assert.Equal(t, 6, dump.MaxLines)

	clarity, _ := policy.Rules(datatypes.PhaseClarity)
	assert.False(t, clarity.Implemented)
}

func TestPolicyCheckDumpPhase(t *testing.T) {
	policy, err := NewPolicy()
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "clean reflective reply",
			content: "You are carrying a lot right now.\nThe project and the move are pulling at you from both sides.",
			want:    nil,
		},
		{
			name:    "trailing question mark",
			content: "It sounds like the deadline is weighing on you?",
			want:    []string{"questions"},
		},
		{
			name:    "leading interrogative",
			content: "What matters most here is unclear to you.",
			want:    []string{"questions"},
		},
		{
			name:    "advice phrase",
			content: "You should take a break before deciding.",
			want:    []string{"advice"},
		},
		{
			name:    "bulleted list",
			content: "You mentioned three things.\n- the deadline\n- the move",
			want:    []string{"structure"},
		},
		{
			name:    "numbered list",
			content: "1. First, the job.\n2. Then, the move.",
			want:    []string{"structure"},
		},
		{
			name:    "markdown header",
			content: "## What I heard\nA lot of pressure.",
			want:    []string{"structure"},
		},
		{
			name:    "planning language",
			content: "The next step is to rest.",
			want:    []string{"next_steps"},
		},
		{
			name:    "empty reply",
			content: "   \n\n  ",
			want:    []string{ViolationLength},
		},
		{
			name:    "too many lines",
			content: strings.Repeat("A line of reflection.\n", 7),
			want:    []string{ViolationLength},
		},
		{
			name:    "multiple categories reported once each",
			content: "Have you tried resting, or have you tried stepping back from it all?",
			want:    []string{"questions", "advice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Check(datatypes.PhaseDump, tt.content)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestPolicyCheckUnimplementedPhaseHasNoForbidden(t *testing.T) {
	policy, err := NewPolicy()
	require.NoError(t, err)

	// Reserved phases carry no forbidden patterns, only line bounds.
	got := policy.Check(datatypes.PhaseClarity, "You should ask yourself what matters?")
	assert.Empty(t, got)
}
