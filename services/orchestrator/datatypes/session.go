// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the thinking-session domain model and the
// request/response types for the session endpoints.

package datatypes

import "time"

// Phase is one stage of the fixed, forward-only thinking-session sequence.
// The phase governs which behavioral rules constrain the assistant's replies.
type Phase string

// The five session phases, in order. Only PhaseDump has active behavioral
// rules today; the rest are reserved.
const (
	PhaseDump      Phase = "DUMP"
	PhaseClarity   Phase = "CLARITY"
	PhaseDecision  Phase = "DECISION"
	PhasePlanning  Phase = "PLANNING"
	PhaseExecution Phase = "EXECUTION"
)

// PhaseOrder is the canonical forward-only progression. Index position is
// the phase's ordinal; a session never moves to a lower index.
var PhaseOrder = []Phase{PhaseDump, PhaseClarity, PhaseDecision, PhasePlanning, PhaseExecution}

// Ordinal returns the phase's position in PhaseOrder, or -1 if unknown.
func (p Phase) Ordinal() int {
	for i, phase := range PhaseOrder {
		if phase == p {
			return i
		}
	}
	return -1
}

// Terminal reports whether p is the final phase of the sequence.
func (p Phase) Terminal() bool {
	return p == PhaseExecution
}

// Session is one thinking-session conversation.
//
// # Invariants
//
//   - CurrentPhase only ever advances forward through PhaseOrder. Only an
//     explicit advance operation mutates it, never an AI response.
type Session struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id,omitempty"`
	CurrentPhase Phase     `json:"current_phase"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionMessage is one message in a session's ordered log.
// Phase records which phase was active when the message was authored.
// Messages are exclusively owned by their session.
type SessionMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// Request Types
// =============================================================================

// CreateSessionRequest is the body for POST /v1/sessions.
type CreateSessionRequest struct {
	OwnerID string `json:"owner_id,omitempty"`
}

// PostSessionMessageRequest is the body for
// POST /v1/sessions/:sessionId/messages.
type PostSessionMessageRequest struct {
	Content string `json:"content" validate:"required,maxbytes"`
}

// Validate validates the request fields after JSON binding.
func (r *PostSessionMessageRequest) Validate() error {
	return decisionValidate.Struct(r)
}

// =============================================================================
// Response Types
// =============================================================================

// SessionMessageResponse is the response for a posted session message.
//
// # Fields
//
//   - Message: The assistant reply that was appended to the session log.
//   - Phase: The phase the reply was generated under.
//   - ValidationPassed: False when the reply still violated the phase rules
//     after the bounded regeneration attempts. The reply is returned anyway;
//     a degraded answer beats no answer for this conversational surface.
//   - Regenerated: True when more than one generation attempt was needed.
//   - Violations: The rule categories that fired, populated only when
//     ValidationPassed is false.
type SessionMessageResponse struct {
	Message          SessionMessage `json:"message"`
	Phase            Phase          `json:"phase"`
	ValidationPassed bool           `json:"validation_passed"`
	Regenerated      bool           `json:"regenerated"`
	Violations       []string       `json:"violations,omitempty"`
}

// SessionWithMessages is a session plus its ordered message log.
type SessionWithMessages struct {
	Session  Session          `json:"session"`
	Messages []SessionMessage `json:"messages"`
}
