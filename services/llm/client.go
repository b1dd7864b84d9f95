// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides LLM backend clients for the orchestrator.
//
// Every backend implements LLMClient: a single blocking chat completion over
// role-tagged messages. Provider failures are surfaced as *ProviderError so
// callers can branch on a stable category instead of provider-specific
// strings (see errors.go).
package llm

import (
	"context"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// SamplingParams controls generation behavior for a single completion call.
// Nil pointer fields leave the provider default in place.
type SamplingParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// JSONResponse requests the provider's JSON-object response mode.
	// Backends without a native JSON mode ignore it; the decision prompt
	// pins the schema either way.
	JSONResponse bool `json:"json_response,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Chat sends the full message sequence and returns the assistant's raw
	// text reply. The context deadline bounds the network call.
	Chat(ctx context.Context, messages []datatypes.Message, params SamplingParams) (string, error)
}

// Helpers for building pointer-valued sampling params inline.

func Float32Ptr(v float32) *float32 { return &v }
func IntPtr(v int) *int             { return &v }
