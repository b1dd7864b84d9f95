// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tasks holds pure task-list helpers: an initial-priority keyword
// heuristic and manual reordering. Task storage is an external concern;
// these functions never touch state.
package tasks

import (
	"sort"
	"strings"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// PriorityBase is the neutral starting score for ScoreForPriority.
// Lower scores mean more urgent.
const PriorityBase = 50

const keywordWeight = 15

// Urgency keywords pull the score down, deferral keywords push it up.
// Matching is case-insensitive substring matching on the title.
var (
	urgentKeywords = []string{
		"urgent",
		"asap",
		"immediately",
		"critical",
		"blocker",
		"blocking",
		"deadline",
		"today",
		"overdue",
	}
	deferKeywords = []string{
		"someday",
		"eventually",
		"later",
		"maybe",
		"optional",
		"nice to have",
		"when possible",
		"low priority",
		"backlog",
	}
)

// ScoreForPriority computes a heuristic urgency score for a task title.
//
// # Description
//
// Starts from PriorityBase and shifts by keywordWeight per matched keyword:
// urgency keywords subtract, deferral keywords add. The result is clamped
// to [0, 100]. Used only for initial auto-assignment when a task arrives
// without an explicit priority; never applied to parser output, which has
// its own dense renumbering.
func ScoreForPriority(title string) int {
	lower := strings.ToLower(title)
	score := PriorityBase
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			score -= keywordWeight
		}
	}
	for _, kw := range deferKeywords {
		if strings.Contains(lower, kw) {
			score += keywordWeight
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ReorderOnManualChange applies a user's manual priority change to a task
// list.
//
// # Description
//
// The target task is removed, reinserted at newPriority (clamped to
// [1, len]), and every task is renumbered densely 1..N. The relative order
// of the non-target tasks is preserved. The input slice is not mutated.
//
// # Outputs
//
//   - []ReorderableTask: The renumbered list, ascending by priority.
//   - bool: False when targetID is not present; the input is returned
//     renumbered but otherwise unchanged.
func ReorderOnManualChange(list []datatypes.ReorderableTask, targetID string, newPriority int) ([]datatypes.ReorderableTask, bool) {
	ordered := make([]datatypes.ReorderableTask, len(list))
	copy(ordered, list)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	targetIdx := -1
	for i, task := range ordered {
		if task.ID == targetID {
			targetIdx = i
			break
		}
	}
	if targetIdx == -1 {
		renumber(ordered)
		return ordered, false
	}

	target := ordered[targetIdx]
	rest := append(ordered[:targetIdx:targetIdx], ordered[targetIdx+1:]...)

	insertAt := newPriority - 1
	if insertAt < 0 {
		insertAt = 0
	}
	if insertAt > len(rest) {
		insertAt = len(rest)
	}

	result := make([]datatypes.ReorderableTask, 0, len(ordered))
	result = append(result, rest[:insertAt]...)
	result = append(result, target)
	result = append(result, rest[insertAt:]...)
	renumber(result)
	return result, true
}

func renumber(list []datatypes.ReorderableTask) {
	for i := range list {
		list[i].Priority = i + 1
	}
}
