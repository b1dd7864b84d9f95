// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package decision

import (
	"math"
	"strings"
	"unicode"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// Confidence factor names, also the keys of ConfidenceResult.Factors.
const (
	FactorInputClarity        = "input_clarity"
	FactorDecisionSpecificity = "decision_specificity"
	FactorTaskActionability   = "task_actionability"
	FactorReasoningQuality    = "reasoning_quality"
	FactorContextAvailability = "context_availability"
)

// factorWeights are the fixed weights of the composite score. They sum to 1
// so the overall score stays in [0,1] when every factor does.
var factorWeights = map[string]float64{
	FactorInputClarity:        0.20,
	FactorDecisionSpecificity: 0.25,
	FactorTaskActionability:   0.25,
	FactorReasoningQuality:    0.20,
	FactorContextAvailability: 0.10,
}

var clarityKeywords = []string{"want", "need", "goal", "problem", "decision"}

var vagueWords = []string{"maybe", "perhaps", "might", "could", "possibly"}

var causalConnectives = []string{"because", "therefore", "since", "as a result", "this means"}

// actionVerbs mark a task title or decision as concretely actionable.
var actionVerbs = []string{
	"write", "call", "schedule", "create", "review", "research", "draft",
	"email", "book", "list", "define", "set", "start", "finish", "contact",
	"update", "plan", "test", "build", "buy", "ask", "send", "read",
	"choose", "cancel", "apply", "talk", "block", "measure",
}

// ScoreMeta carries the request-level signals the scorer needs beyond the
// decision itself.
type ScoreMeta struct {
	UserInput  string
	HasContext bool
}

// ScoreConfidence computes the weighted confidence breakdown for a decision.
//
// # Description
//
// Five heuristic factors, each clamped to [0,1], combined with fixed
// weights and rounded to two decimals. The result is derived state:
// recomputed per decision, never persisted on its own.
//
// # Outputs
//
//   - datatypes.ConfidenceResult: Overall score, per-factor values, level.
func ScoreConfidence(d *datatypes.Decision, meta ScoreMeta) datatypes.ConfidenceResult {
	factors := map[string]float64{
		FactorInputClarity:        inputClarity(meta.UserInput),
		FactorDecisionSpecificity: decisionSpecificity(d.Decision),
		FactorTaskActionability:   taskActionability(d.Tasks),
		FactorReasoningQuality:    reasoningQuality(d.Reasoning),
		FactorContextAvailability: contextAvailability(meta.HasContext),
	}

	overall := 0.0
	for name, value := range factors {
		overall += value * factorWeights[name]
	}
	overall = math.Round(overall*100) / 100

	return datatypes.ConfidenceResult{
		Overall: overall,
		Factors: factors,
		Level:   ConfidenceLevel(overall),
	}
}

// ConfidenceLevel maps an overall score to its qualitative level.
func ConfidenceLevel(overall float64) string {
	switch {
	case overall >= 0.8:
		return datatypes.ConfidenceHigh
	case overall >= 0.6:
		return datatypes.ConfidenceMedium
	case overall >= 0.4:
		return datatypes.ConfidenceLow
	default:
		return datatypes.ConfidenceVeryLow
	}
}

// inputClarity rewards longer, intent-bearing input.
// Thresholds: +0.1 for each of 50/100/200 chars; keywords +0.05 each;
// very short input (<20 chars) is penalized.
func inputClarity(input string) float64 {
	score := 0.5
	length := len([]rune(input))

	for _, threshold := range []int{50, 100, 200} {
		if length > threshold {
			score += 0.1
		}
	}
	lower := strings.ToLower(input)
	for _, kw := range clarityKeywords {
		if strings.Contains(lower, kw) {
			score += 0.05
		}
	}
	if length < 20 {
		score -= 0.2
	}
	return clamp01(score)
}

// decisionSpecificity rewards substance and penalizes hedging.
func decisionSpecificity(text string) float64 {
	score := 0.5
	words := wordCount(text)
	if words > 5 {
		score += 0.1
	}
	if words > 10 {
		score += 0.1
	}
	lower := strings.ToLower(text)
	for _, verb := range actionVerbs {
		if containsWord(lower, verb) {
			score += 0.05
		}
	}
	for _, vague := range vagueWords {
		if containsWord(lower, vague) {
			score -= 0.1
		}
	}
	return clamp01(score)
}

// taskActionability averages a per-task heuristic. No tasks scores zero:
// a decision with nothing to do is not actionable.
func taskActionability(tasks []datatypes.Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	total := 0.0
	for _, task := range tasks {
		score := 0.5
		lower := strings.ToLower(task.Title)
		if startsWithActionVerb(lower) {
			score += 0.2
		}
		if strings.ContainsFunc(task.Title, unicode.IsDigit) {
			score += 0.1
		}
		if len([]rune(task.Title)) > 10 {
			score += 0.1
		}
		if strings.Contains(lower, "etc") || strings.Contains(task.Title, "...") {
			score -= 0.2
		}
		total += clamp01(score)
	}
	return clamp01(total / float64(len(tasks)))
}

// reasoningQuality rewards causal structure and a useful length band.
func reasoningQuality(text string) float64 {
	score := 0.5
	lower := strings.ToLower(text)
	for _, conn := range causalConnectives {
		if strings.Contains(lower, conn) {
			score += 0.1
		}
	}
	if words := wordCount(text); words >= 10 && words <= 100 {
		score += 0.1
	}
	if strings.Contains(lower, "aligned") {
		score += 0.1
	}
	return clamp01(score)
}

func contextAvailability(hasContext bool) float64 {
	if hasContext {
		return 0.1
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// containsWord reports whether lower contains w as a whole word.
func containsWord(lower, w string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !unicode.IsLetter(rune(lower[start-1]))
		afterOK := end == len(lower) || !unicode.IsLetter(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func startsWithActionVerb(lower string) bool {
	first := lower
	if i := strings.IndexFunc(lower, unicode.IsSpace); i > 0 {
		first = lower[:i]
	}
	for _, verb := range actionVerbs {
		if first == verb {
			return true
		}
	}
	return false
}
