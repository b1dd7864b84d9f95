// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package textnorm provides normalization and validation for free-form user input.
//
// Every piece of user text entering the decision pipeline passes through this
// package before any prompt is built. Normalization is lossy on purpose:
// control characters, smart punctuation, and whitespace runs carry no signal
// for the LLM and only inflate token counts.
package textnorm

import (
	"strings"
	"unicode"
)

// Validation error codes returned in Result.Errors.
const (
	ErrInvalidType      = "INVALID_TYPE"
	ErrTooShort         = "TOO_SHORT"
	ErrTooLong          = "TOO_LONG"
	ErrNoTextualContent = "NO_TEXTUAL_CONTENT"
)

// Length bounds applied to the normalized string.
const (
	MinInputLength = 3
	MaxInputLength = 10000
)

// quoteReplacer maps typographic punctuation to its ASCII equivalent.
// Curly quotes become straight quotes, en/em dashes become hyphens.
var quoteReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
)

// Result holds the outcome of validating a piece of user input.
//
// # Fields
//
//   - Valid: true when the input passed all checks
//   - Errors: machine-readable error codes, empty when Valid
//   - Normalized: the cleaned input, populated only when Valid
type Result struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors,omitempty"`
	Normalized string   `json:"normalized,omitempty"`
}

// Normalize cleans raw user text for downstream prompt assembly.
//
// # Description
//
// Applies, in order: C0 control character removal (tabs and newlines are
// treated as whitespace, not stripped), smart-quote and dash normalization,
// whitespace-run collapsing, and edge trimming.
//
// # Inputs
//
//   - s: Raw user text. May be empty.
//
// # Outputs
//
//   - string: The normalized text. Empty input yields an empty string.
func Normalize(s string) string {
	s = quoteReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case r < 0x20 || r == 0x7F:
			// Remaining C0 controls and DEL carry no content.
			continue
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate normalizes and validates user input in one pass.
//
// # Description
//
// Runs Normalize and then checks the result against the length bounds and
// the textual-content requirement. All failed checks are reported together
// so the caller can surface every problem at once.
//
// # Inputs
//
//   - s: Raw user text.
//
// # Outputs
//
//   - Result: Valid with the normalized text, or the list of error codes.
//
// # Examples
//
//	res := textnorm.Validate("  What should   I do? ")
//	// res.Valid == true, res.Normalized == "What should I do?"
func Validate(s string) Result {
	if strings.TrimSpace(s) == "" {
		return Result{Errors: []string{ErrInvalidType}}
	}

	normalized := Normalize(s)
	var errs []string

	if len([]rune(normalized)) < MinInputLength {
		errs = append(errs, ErrTooShort)
	}
	if len([]rune(normalized)) > MaxInputLength {
		errs = append(errs, ErrTooLong)
	}
	if !hasLetter(normalized) {
		errs = append(errs, ErrNoTextualContent)
	}

	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{Valid: true, Normalized: normalized}
}

// hasLetter reports whether s contains at least one alphabetic character.
func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
