// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/ktresler/Waypoint/services/llm"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
)

var engineTracer = otel.Tracer("waypoint.session")

// MaxAttempts is the hard cap on generation attempts per reply. The
// regenerate-on-violation loop must never be unbounded; each attempt is a
// paid LLM call and adds user-visible latency.
const MaxAttempts = 3

// ErrPhaseNotSupported is returned when a reply is requested for a phase
// whose behavior is still a reserved placeholder.
type ErrPhaseNotSupported struct {
	Phase datatypes.Phase
}

func (e *ErrPhaseNotSupported) Error() string {
	return fmt.Sprintf("phase %s has no implemented behavior yet", e.Phase)
}

// ReplyResult is the outcome of one governed reply generation.
//
// # Fields
//
//   - Content: The assistant reply. Present even when validation failed;
//     a degraded reply is preferable to none for this surface.
//   - ValidationPassed: False when the final attempt still violated rules.
//   - Regenerated: True when more than one attempt was needed.
//   - Attempts: Total generation attempts made (1..MaxAttempts).
//   - Violations: Categories that fired on the final attempt. Empty when
//     ValidationPassed is true.
type ReplyResult struct {
	Content          string
	ValidationPassed bool
	Regenerated      bool
	Attempts         int
	Violations       []string
}

// Engine drives governed reply generation for thinking sessions.
//
// The engine is stateless between calls; conversation history is supplied
// by the caller from the session store. Safe for concurrent use.
type Engine struct {
	client    llm.LLMClient
	policy    *Policy
	validator Validator
	metrics   *observability.Metrics
	backend   string
}

// NewEngine creates a session engine over the given backend and policy.
// Pass a non-nil validator to replace the policy's own rule checking.
func NewEngine(client llm.LLMClient, policy *Policy, validator Validator) *Engine {
	if validator == nil {
		validator = policy
	}
	return &Engine{client: client, policy: policy, validator: validator}
}

// WithMetrics enables LLM latency and error recording, labeled with the
// given backend name. Must be called before the engine is shared.
func (e *Engine) WithMetrics(metrics *observability.Metrics, backend string) *Engine {
	e.metrics = metrics
	e.backend = backend
	return e
}

// GenerateReply produces a phase-governed assistant reply.
//
// # Description
//
// Builds the phase message sequence (phase system prompt plus the full
// history including the new user turn), calls the LLM with the phase's
// sampling config, and validates the reply. On violation it appends a
// corrective system reminder and retries, up to MaxAttempts total calls.
// After the cap, the last content is returned with ValidationPassed=false
// and the violation categories that fired.
//
// # Inputs
//
//   - phase: The session's current phase. Unimplemented phases return
//     *ErrPhaseNotSupported instead of placeholder output.
//   - history: Ordered conversation log ending with the new user message.
//
// # Outputs
//
//   - ReplyResult: See type. Only meaningful when error is nil.
//   - error: Provider failures and context cancellation abort the loop.
func (e *Engine) GenerateReply(ctx context.Context, phase datatypes.Phase, history []datatypes.Message) (ReplyResult, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.GenerateReply")
	defer span.End()

	rules, ok := e.policy.Rules(phase)
	if !ok || !rules.Implemented {
		return ReplyResult{}, &ErrPhaseNotSupported{Phase: phase}
	}

	params := llm.SamplingParams{
		Temperature: llm.Float32Ptr(rules.Sampling.Temperature),
		TopP:        llm.Float32Ptr(rules.Sampling.TopP),
		MaxTokens:   llm.IntPtr(rules.Sampling.MaxTokens),
	}

	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{
		Role:    datatypes.RoleSystem,
		Content: rules.SystemPrompt,
	})
	messages = append(messages, history...)

	var content string
	var violations []string

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ReplyResult{}, err
		}

		start := time.Now()
		reply, err := e.client.Chat(ctx, messages, params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if e.metrics != nil {
				e.metrics.RecordLLMError(e.backend, string(llm.CodeOf(err)))
			}
			return ReplyResult{}, err
		}
		if e.metrics != nil {
			e.metrics.RecordLLMCall(e.backend, "session", time.Since(start).Seconds())
		}

		content = reply
		violations = e.validator.Check(phase, reply)
		if len(violations) == 0 {
			slog.Info("Phase reply validated", "phase", phase, "attempt", attempt)
			return ReplyResult{
				Content:          reply,
				ValidationPassed: true,
				Regenerated:      attempt > 1,
				Attempts:         attempt,
			}, nil
		}

		slog.Warn("Phase reply violated rules",
			"phase", phase,
			"attempt", attempt,
			"violations", violations)

		if attempt < MaxAttempts {
			messages = append(messages, correctiveReminder(rules, violations))
		}
	}

	// All attempts exhausted. Surface the degraded reply rather than fail;
	// the caller flags it as unvalidated.
	return ReplyResult{
		Content:          content,
		ValidationPassed: false,
		Regenerated:      true,
		Attempts:         MaxAttempts,
		Violations:       violations,
	}, nil
}

// correctiveReminder builds the system message injected between attempts.
// It restates the phase's forbidden behaviors so the retry has the rules
// fresh in its most recent context.
func correctiveReminder(rules *PhaseRules, violations []string) datatypes.Message {
	var b strings.Builder
	b.WriteString("Your previous reply broke the rules of this phase (")
	b.WriteString(strings.Join(violations, ", "))
	b.WriteString("). The rules are:")
	for _, cat := range rules.Forbidden {
		b.WriteString("\n- ")
		if cat.Description != "" {
			b.WriteString(cat.Description)
		} else {
			b.WriteString("no " + cat.Category)
		}
	}
	fmt.Fprintf(&b, "\nReply again, between %d and %d short lines.", rules.MinLines, rules.MaxLines)
	return datatypes.Message{Role: datatypes.RoleSystem, Content: b.String()}
}
