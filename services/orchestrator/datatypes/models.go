// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// Wire types shared between the HTTP layer, the decision engine, and the
// session engine live here. The package has no dependency on the engines
// themselves, so every service can import it freely.
package datatypes

import "github.com/google/uuid"

// Message is a single role-tagged chat message sent to an LLM backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// generateUUID returns a new UUID v4 string for request/response identifiers.
func generateUUID() string {
	return uuid.NewString()
}
