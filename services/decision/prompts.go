// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package decision turns free-form user text into one actionable decision.
//
// The pipeline is: normalize input (pkg/textnorm) -> build a prompt
// (prompts.go) -> call the LLM (engine.go) -> parse and validate the JSON
// reply (parser.go) -> score confidence (confidence.go). Prompt assembly is
// pure message construction with no network or state side effects.
package decision

import (
	"fmt"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// decisionSystemPrompt pins the output contract for every decision flow.
// The JSON schema named here is exactly what parser.go validates against.
const decisionSystemPrompt = `You are a decision-making assistant. Given the user's situation, produce exactly one recommended direction.

You MUST respond with a single JSON object and nothing else, in this schema:
{
  "decision": "one clear recommended direction",
  "reasoning": "why this direction, grounded only in what the user said",
  "tasks": [{"title": "concrete next action", "priority": 1}],
  "alignment_check": "a closing question inviting the user to push back"
}

Rules:
- Recommend ONE direction. Never present alternatives as the answer.
- 1 to 5 tasks, each a concrete action, priorities starting at 1.
- No hype, no motivational filler. Be honest about uncertainty.
- If the input is too vague to decide, say so in "reasoning" and make the
  first task a request for the specific missing information.`

// BuildDecisionPrompt assembles the message sequence for a fresh decision.
//
// # Inputs
//
//   - input: Normalized user text.
//   - context: Optional recent-history block. Empty string omits the block.
//
// # Outputs
//
//   - []datatypes.Message: system instructions, optional context, user input.
func BuildDecisionPrompt(input, context string) []datatypes.Message {
	messages := []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: decisionSystemPrompt},
	}
	if context != "" {
		messages = append(messages, datatypes.Message{
			Role:    datatypes.RoleSystem,
			Content: "Context about this user:\n" + context,
		})
	}
	messages = append(messages, datatypes.Message{
		Role:    datatypes.RoleUser,
		Content: input,
	})
	return messages
}

// BuildRefinementPrompt assembles the message sequence for refining a prior
// decision from user feedback. The prior decision is embedded verbatim so
// the model refines rather than starts over.
func BuildRefinementPrompt(prior *datatypes.Decision, feedback string) []datatypes.Message {
	taskList := ""
	for _, task := range prior.Tasks {
		taskList += fmt.Sprintf("  %d. %s\n", task.Priority, task.Title)
	}

	userContent := fmt.Sprintf(
		"Here is the decision you previously recommended:\n\nDecision: %s\nReasoning: %s\nTasks:\n%s\nMy feedback: %s\n\nRefine the decision based on my feedback. Keep what still holds.",
		prior.Decision, prior.Reasoning, taskList, feedback)

	return []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: decisionSystemPrompt},
		{Role: datatypes.RoleUser, Content: userContent},
	}
}

// BuildClarificationPrompt assembles the follow-up message sequence after
// the model asked for clarification. A synthetic assistant turn carries the
// clarification request so the conversation reads naturally to the model.
func BuildClarificationPrompt(originalInput, clarification string) []datatypes.Message {
	return []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: decisionSystemPrompt},
		{Role: datatypes.RoleUser, Content: originalInput},
		{
			Role:    datatypes.RoleAssistant,
			Content: "I need more information before I can recommend a direction. Could you clarify?",
		},
		{Role: datatypes.RoleUser, Content: clarification},
	}
}
