// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session implements phase-governed thinking sessions.
//
// A session moves forward-only through a fixed phase sequence. The active
// phase constrains the assistant's replies through a forbidden-content
// policy (this file) and a bounded regenerate-on-violation loop (engine.go).
// Session state lives behind the Store interface (store.go).
package session

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/session/rules"
)

// The violation category reported when a reply breaks the line bounds
// rather than a forbidden-content pattern.
const ViolationLength = "length"

// SamplingConfig is the per-phase LLM sampling configuration.
type SamplingConfig struct {
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float32 `yaml:"top_p"`
}

// ForbiddenCategory is one named group of regex patterns a phase forbids.
type ForbiddenCategory struct {
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Patterns    []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// PhaseRules holds everything the engine needs to govern one phase.
type PhaseRules struct {
	Phase        datatypes.Phase     `yaml:"phase"`
	Implemented  bool                `yaml:"implemented"`
	SystemPrompt string              `yaml:"system_prompt"`
	Sampling     SamplingConfig      `yaml:"sampling"`
	MinLines     int                 `yaml:"min_lines"`
	MaxLines     int                 `yaml:"max_lines"`
	Forbidden    []ForbiddenCategory `yaml:"forbidden"`
}

type phaseRuleFile struct {
	Phases []PhaseRules `yaml:"phases"`
}

// Validator checks a generated reply against a phase's behavioral rules.
//
// Regex-based checking is inherently heuristic; the interface exists so a
// stricter or model-specific checker can replace the default policy without
// touching the retry loop.
type Validator interface {
	// Check returns the violation categories the content triggers for the
	// phase. An empty slice means the content passes.
	Check(phase datatypes.Phase, content string) []string
}

// Policy is the default Validator, built from the embedded rule file.
// It also serves the per-phase prompts and sampling configs to the engine.
type Policy struct {
	byPhase map[datatypes.Phase]*PhaseRules
}

// NewPolicy parses and compiles the embedded phase rule file.
//
// Returns an error if the embedded YAML is malformed, a regex does not
// compile, or a phase entry is missing or unknown.
func NewPolicy() (*Policy, error) {
	var file phaseRuleFile
	if err := yaml.Unmarshal(rules.PhaseRulePatterns, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded phase rule file: %w", err)
	}

	byPhase := make(map[datatypes.Phase]*PhaseRules, len(file.Phases))
	for i := range file.Phases {
		pr := &file.Phases[i]
		if pr.Phase.Ordinal() < 0 {
			return nil, fmt.Errorf("unknown phase %q in rule file", pr.Phase)
		}
		for j := range pr.Forbidden {
			cat := &pr.Forbidden[j]
			for _, pattern := range cat.Patterns {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, fmt.Errorf("failed to compile the pattern %s: %w", pattern, err)
				}
				cat.compiled = append(cat.compiled, re)
			}
		}
		byPhase[pr.Phase] = pr
	}

	for _, phase := range datatypes.PhaseOrder {
		if _, ok := byPhase[phase]; !ok {
			return nil, fmt.Errorf("rule file is missing an entry for phase %s", phase)
		}
	}

	return &Policy{byPhase: byPhase}, nil
}

// Rules returns the rule set for a phase. The second return is false for
// phases absent from the rule file (cannot happen after NewPolicy succeeds).
func (p *Policy) Rules(phase datatypes.Phase) (*PhaseRules, bool) {
	pr, ok := p.byPhase[phase]
	return pr, ok
}

// Check implements Validator.
//
// # Description
//
// Runs every forbidden category's patterns against the trimmed content and
// applies the phase's line bounds. Each category is reported at most once
// regardless of how many of its patterns fire.
func (p *Policy) Check(phase datatypes.Phase, content string) []string {
	pr, ok := p.byPhase[phase]
	if !ok {
		return nil
	}

	trimmed := strings.TrimSpace(content)
	var violations []string

	for _, cat := range pr.Forbidden {
		for _, re := range cat.compiled {
			if re.MatchString(trimmed) {
				violations = append(violations, cat.Category)
				break
			}
		}
	}

	if lines := countNonEmptyLines(trimmed); lines < pr.MinLines || lines > pr.MaxLines {
		violations = append(violations, ViolationLength)
	}

	return violations
}

// countNonEmptyLines counts lines with any non-whitespace content.
func countNonEmptyLines(s string) int {
	count := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

var _ Validator = (*Policy)(nil)
