// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package decision

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// Parse error codes.
const (
	ErrMalformedJSON   = "MALFORMED_JSON"
	ErrSchemaViolation = "SCHEMA_VIOLATION"
)

// ParseError describes a failed parse of an LLM decision reply.
//
// Code is ErrMalformedJSON when the reply was not JSON at all, or
// ErrSchemaViolation with the field-level problems listed in Fields.
type ParseError struct {
	Code   string
	Fields []string
	Err    error
}

func (e *ParseError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Code, strings.Join(e.Fields, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *ParseError) Unwrap() error { return e.Err }

// rawDecision holds the undecoded reply fields. Everything is any-typed
// so a wrong-typed field is still a successful unmarshal; type checking
// happens field by field, and each mismatch lands in ParseError.Fields
// instead of failing the whole decode.
type rawDecision struct {
	Decision  any `json:"decision"`
	Reasoning any `json:"reasoning"`
	Tasks     any `json:"tasks"`
}

// ParseDecisionResponse turns a raw LLM JSON reply into a valid Decision.
//
// # Description
//
// Parsing enforces the full schema and then normalizes:
//   - decision/reasoning are trimmed
//   - tasks are stably sorted by declared priority and renumbered densely
//     as 1..N, so downstream code can rely on an exact permutation
//   - the alignment question is appended to reasoning if absent, stripping
//     one trailing '.', '!', or '?' first to avoid double punctuation
//
// # Outputs
//
//   - *datatypes.Decision: The normalized decision.
//   - error: *ParseError with ErrMalformedJSON or ErrSchemaViolation.
func ParseDecisionResponse(raw string) (*datatypes.Decision, error) {
	var parsed rawDecision
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &ParseError{Code: ErrMalformedJSON, Err: err}
	}

	var fieldErrs []string
	decision, decisionOK := parsed.Decision.(string)
	if !decisionOK || strings.TrimSpace(decision) == "" {
		fieldErrs = append(fieldErrs, "Missing or invalid 'decision' field")
	}
	reasoning, reasoningOK := parsed.Reasoning.(string)
	if !reasoningOK || strings.TrimSpace(reasoning) == "" {
		fieldErrs = append(fieldErrs, "Missing or invalid 'reasoning' field")
	}
	rawTasks, tasksOK := parsed.Tasks.([]any)
	if !tasksOK || len(rawTasks) == 0 {
		fieldErrs = append(fieldErrs, "Missing or empty 'tasks' array")
	}
	if len(rawTasks) > datatypes.MaxDecisionTasks {
		fieldErrs = append(fieldErrs, fmt.Sprintf("Maximum %d tasks allowed", datatypes.MaxDecisionTasks))
	}

	tasks := make([]datatypes.Task, 0, len(rawTasks))
	for i, elem := range rawTasks {
		// A non-object element leaves obj nil; both lookups below then
		// fail and report the concrete field problems.
		obj, _ := elem.(map[string]any)
		title, titleOK := obj["title"].(string)
		if !titleOK || strings.TrimSpace(title) == "" {
			fieldErrs = append(fieldErrs, fmt.Sprintf("Task %d is missing a valid 'title'", i+1))
		}
		priority, prioOK := asPriority(obj["priority"])
		if !prioOK {
			fieldErrs = append(fieldErrs, fmt.Sprintf("Task %d is missing a valid 'priority' (integer >= 1)", i+1))
		}
		if titleOK && prioOK {
			tasks = append(tasks, datatypes.Task{Title: strings.TrimSpace(title), Priority: priority})
		}
	}

	if len(fieldErrs) > 0 {
		return nil, &ParseError{Code: ErrSchemaViolation, Fields: fieldErrs}
	}

	// Stable sort: declared priority, ties keep original order. Then the
	// declared values are discarded in favor of a dense 1..N sequence.
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority < tasks[j].Priority
	})
	for i := range tasks {
		tasks[i].Priority = i + 1
	}

	return &datatypes.Decision{
		Decision:  strings.TrimSpace(decision),
		Reasoning: ensureAlignmentQuestion(strings.TrimSpace(reasoning)),
		Tasks:     tasks,
	}, nil
}

// asPriority coerces a JSON value into a task priority. JSON numbers decode
// as float64; a fractional or sub-1 value is invalid.
func asPriority(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) || int(f) < 1 {
		return 0, false
	}
	return int(f), true
}

// ensureAlignmentQuestion guarantees reasoning ends with the fixed
// alignment question. Idempotent: reasoning already ending with the exact
// suffix is returned unchanged.
func ensureAlignmentQuestion(reasoning string) string {
	if strings.HasSuffix(reasoning, datatypes.AlignmentQuestion) {
		return reasoning
	}
	trimmed := strings.TrimRight(reasoning, " ")
	if n := len(trimmed); n > 0 {
		switch trimmed[n-1] {
		case '.', '!', '?':
			trimmed = trimmed[:n-1]
		}
	}
	return trimmed + ". " + datatypes.AlignmentQuestion
}
