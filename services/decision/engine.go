// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package decision

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/ktresler/Waypoint/services/llm"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
)

var engineTracer = otel.Tracer("waypoint.decision")

// Engine orchestrates prompt building, the LLM call, and response parsing
// for the decision flows. It holds no mutable state after construction and
// is safe for concurrent use.
type Engine struct {
	client  llm.LLMClient
	metrics *observability.Metrics
	backend string
}

// NewEngine creates a decision engine over the given LLM backend.
func NewEngine(client llm.LLMClient) *Engine {
	return &Engine{client: client}
}

// WithMetrics enables LLM latency and error recording, labeled with the
// given backend name. Must be called before the engine is shared.
func (e *Engine) WithMetrics(metrics *observability.Metrics, backend string) *Engine {
	e.metrics = metrics
	e.backend = backend
	return e
}

// decisionSampling is the sampling configuration for all decision flows.
// JSON-object response mode is always on; the parser depends on it.
func decisionSampling() llm.SamplingParams {
	return llm.SamplingParams{
		Temperature:  llm.Float32Ptr(0.7),
		MaxTokens:    llm.IntPtr(1024),
		JSONResponse: true,
	}
}

// Generate produces a fresh decision from normalized user input.
//
// # Inputs
//
//   - input: Normalized user text (callers run textnorm.Validate first).
//   - contextBlock: Optional recent-history block, "" for none.
//
// # Outputs
//
//   - *datatypes.Decision: Parsed, normalized, confidence-scored decision.
//   - *datatypes.ConfidenceResult: Factor-level confidence breakdown.
//   - error: *llm.ProviderError or *ParseError.
func (e *Engine) Generate(ctx context.Context, input, contextBlock string) (*datatypes.Decision, *datatypes.ConfidenceResult, error) {
	return e.run(ctx, "Engine.Generate", BuildDecisionPrompt(input, contextBlock), ScoreMeta{
		UserInput:  input,
		HasContext: contextBlock != "",
	})
}

// Refine produces a revised decision from a prior decision plus feedback.
func (e *Engine) Refine(ctx context.Context, prior *datatypes.Decision, feedback string) (*datatypes.Decision, *datatypes.ConfidenceResult, error) {
	return e.run(ctx, "Engine.Refine", BuildRefinementPrompt(prior, feedback), ScoreMeta{
		UserInput: feedback,
	})
}

// Clarify produces a decision after the user answered a clarification
// request from an earlier generation attempt.
func (e *Engine) Clarify(ctx context.Context, originalInput, clarification string) (*datatypes.Decision, *datatypes.ConfidenceResult, error) {
	return e.run(ctx, "Engine.Clarify", BuildClarificationPrompt(originalInput, clarification), ScoreMeta{
		UserInput: originalInput + " " + clarification,
	})
}

// run executes one prompt->LLM->parse->score pass.
func (e *Engine) run(ctx context.Context, op string, messages []datatypes.Message, meta ScoreMeta) (*datatypes.Decision, *datatypes.ConfidenceResult, error) {
	ctx, span := engineTracer.Start(ctx, op)
	defer span.End()

	start := time.Now()
	raw, err := e.client.Chat(ctx, messages, decisionSampling())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.metrics != nil {
			e.metrics.RecordLLMError(e.backend, string(llm.CodeOf(err)))
		}
		slog.Error("LLM call failed", "op", op, "code", llm.CodeOf(err), "error", err)
		return nil, nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordLLMCall(e.backend, "decision", time.Since(start).Seconds())
	}

	parsed, err := ParseDecisionResponse(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse LLM decision reply", "op", op, "error", err)
		return nil, nil, err
	}

	result := ScoreConfidence(parsed, meta)
	parsed.Confidence = result.Overall

	slog.Info("Decision generated",
		"op", op,
		"tasks", len(parsed.Tasks),
		"confidence", result.Overall,
		"level", result.Level)
	return parsed, &result, nil
}

// HealthCheck issues a minimal probe call against the backend.
//
// # Outputs
//
//   - string: "ok" when the backend answered, "error" otherwise.
//   - error: The underlying failure when status is "error". Never panics,
//     never fails the caller beyond the returned values.
func (e *Engine) HealthCheck(ctx context.Context) (string, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.HealthCheck")
	defer span.End()

	probe := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "Reply with the single word: ok"},
	}
	_, err := e.client.Chat(ctx, probe, llm.SamplingParams{
		MaxTokens: llm.IntPtr(8),
	})
	if err != nil {
		span.RecordError(err)
		return "error", err
	}
	return "ok", nil
}
