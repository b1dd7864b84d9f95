// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the decision domain model and the request/response
// types for the decision endpoints. For session types, see session.go.

package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxDecisionTasks is the maximum number of tasks a decision may carry.
	MaxDecisionTasks = 5

	// MaxInputBytes is the maximum size of a single user input field.
	// Unbounded input is rejected at the binding layer before any
	// normalization work happens.
	MaxInputBytes = 32 * 1024 // 32KB
)

// AlignmentQuestion is the fixed closing question appended to every
// decision's reasoning text. The parser guarantees reasoning ends with it.
const AlignmentQuestion = "Are we aligned, or should we challenge this before moving on?"

// =============================================================================
// Shared Validator Instance
// =============================================================================

// decisionValidate is the validator instance for decision datatypes.
var decisionValidate *validator.Validate

func init() {
	decisionValidate = validator.New()
	_ = decisionValidate.RegisterValidation("maxbytes", validateInputBytes)
}

// validateInputBytes enforces MaxInputBytes on string fields. Byte length,
// not rune count, so oversized multi-byte payloads are caught too.
func validateInputBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxInputBytes
}

// =============================================================================
// Domain Model
// =============================================================================

// Task is one prioritized action item belonging to a Decision.
//
// Priority is relative to the owning decision's task set: after parsing,
// priorities always form the dense sequence 1..N with no gaps or duplicates.
type Task struct {
	Title    string `json:"title"`
	Priority int    `json:"priority"`
}

// Decision is the single recommended direction produced from user input.
//
// # Invariants
//
//   - Reasoning always ends with AlignmentQuestion.
//   - Tasks holds 1..MaxDecisionTasks entries ordered by ascending priority,
//     and the priorities are exactly 1..N.
type Decision struct {
	Decision   string  `json:"decision"`
	Reasoning  string  `json:"reasoning"`
	Tasks      []Task  `json:"tasks"`
	Confidence float64 `json:"confidence_score"`
}

// Confidence levels derived from the overall confidence score.
const (
	ConfidenceVeryLow = "very_low"
	ConfidenceLow     = "low"
	ConfidenceMedium  = "medium"
	ConfidenceHigh    = "high"
)

// ConfidenceResult is the derived confidence breakdown for a decision.
// It is recomputed per decision and never persisted on its own.
type ConfidenceResult struct {
	Overall float64            `json:"overall"`
	Factors map[string]float64 `json:"factors"`
	Level   string             `json:"level"`
}

// =============================================================================
// Request Types
// =============================================================================

// GenerateDecisionRequest is the body for POST /v1/decisions.
//
// # Fields
//
//   - RequestID: Optional client-supplied UUID v4; generated server-side
//     when absent (see EnsureDefaults).
//   - Input: Required free-form user text, up to 32KB.
//   - OwnerID: Optional user identifier used for context lookup and
//     persistence attribution.
//   - UseContext: When true, recent history for OwnerID is fetched and
//     embedded in the prompt. Context unavailability never fails the request.
//   - Persist: When true, the resulting decision is saved if a store is
//     configured. Store unavailability never fails the request.
type GenerateDecisionRequest struct {
	RequestID  string `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp  int64  `json:"timestamp" validate:"gte=0"`
	Input      string `json:"input" validate:"required,maxbytes"`
	OwnerID    string `json:"owner_id,omitempty"`
	UseContext bool   `json:"use_context,omitempty"`
	Persist    bool   `json:"persist,omitempty"`
}

// Validate validates the request fields after JSON binding.
func (r *GenerateDecisionRequest) Validate() error {
	return decisionValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp when the client omitted
// them, so every request is traceable in logs and audit trails.
func (r *GenerateDecisionRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// RefineDecisionRequest is the body for POST /v1/decisions/refine.
// It carries the prior decision verbatim plus the user's feedback on it.
type RefineDecisionRequest struct {
	RequestID string   `json:"request_id" validate:"omitempty,uuid4"`
	Decision  Decision `json:"decision" validate:"required"`
	Feedback  string   `json:"feedback" validate:"required,maxbytes"`
	OwnerID   string   `json:"owner_id,omitempty"`
	Persist   bool     `json:"persist,omitempty"`
}

// Validate validates the request fields after JSON binding.
func (r *RefineDecisionRequest) Validate() error {
	return decisionValidate.Struct(r)
}

// EnsureDefaults populates RequestID when the client omitted it.
func (r *RefineDecisionRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// ClarifyDecisionRequest is the body for POST /v1/decisions/clarify.
// Used when a prior generation asked the user for clarification.
type ClarifyDecisionRequest struct {
	RequestID     string `json:"request_id" validate:"omitempty,uuid4"`
	OriginalInput string `json:"original_input" validate:"required,maxbytes"`
	Clarification string `json:"clarification" validate:"required,maxbytes"`
	OwnerID       string `json:"owner_id,omitempty"`
	Persist       bool   `json:"persist,omitempty"`
}

// Validate validates the request fields after JSON binding.
func (r *ClarifyDecisionRequest) Validate() error {
	return decisionValidate.Struct(r)
}

// EnsureDefaults populates RequestID when the client omitted it.
func (r *ClarifyDecisionRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// ValidateInputRequest is the body for POST /v1/validate.
type ValidateInputRequest struct {
	Input string `json:"input"`
}

// ReorderTasksRequest is the body for POST /v1/tasks/reorder.
type ReorderTasksRequest struct {
	Tasks       []ReorderableTask `json:"tasks" validate:"required,min=1,dive"`
	TargetID    string            `json:"target_id" validate:"required"`
	NewPriority int               `json:"new_priority" validate:"required,gte=1"`
}

// ReorderableTask is an externally-persisted task reference used by the
// manual reorder endpoint. The ID comes from the caller's store.
type ReorderableTask struct {
	ID       string `json:"id" validate:"required"`
	Title    string `json:"title"`
	Priority int    `json:"priority" validate:"gte=1"`
}

// Validate validates the request fields after JSON binding.
func (r *ReorderTasksRequest) Validate() error {
	return decisionValidate.Struct(r)
}

// =============================================================================
// Response Types
// =============================================================================

// DecisionResponse is the response body for all decision endpoints.
//
// # Fields
//
//   - ResponseID: Server-generated UUID for audit correlation.
//   - RequestID: Echo of the request ID.
//   - Decision: The parsed and confidence-scored decision.
//   - ConfidenceDetail: Factor-level confidence breakdown.
//   - Persisted: Whether the decision was stored. False when persistence
//     was not requested, not configured, or degraded.
//   - ContextUsed: Whether recent-history context made it into the prompt.
type DecisionResponse struct {
	ResponseID       string            `json:"response_id"`
	RequestID        string            `json:"request_id"`
	Timestamp        int64             `json:"timestamp"`
	Decision         *Decision         `json:"decision"`
	ConfidenceDetail *ConfidenceResult `json:"confidence_detail,omitempty"`
	Persisted        bool              `json:"persisted"`
	ContextUsed      bool              `json:"context_used"`
	ProcessingTimeMs int64             `json:"processing_time_ms,omitempty"`
}

// NewDecisionResponse creates a DecisionResponse with generated ID and
// timestamp, echoing requestID for correlation.
func NewDecisionResponse(requestID string, d *Decision) *DecisionResponse {
	return &DecisionResponse{
		ResponseID: generateUUID(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Decision:   d,
	}
}
