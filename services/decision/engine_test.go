// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package decision

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktresler/Waypoint/services/llm"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
)

// fakeLLM returns canned replies and records the calls it received.
type fakeLLM struct {
	reply    string
	err      error
	calls    [][]datatypes.Message
	lastOpts llm.SamplingParams
}

func (f *fakeLLM) Chat(ctx context.Context, messages []datatypes.Message, params llm.SamplingParams) (string, error) {
	f.calls = append(f.calls, messages)
	f.lastOpts = params
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

const validReply = `{
	"decision": "Take the offer",
	"reasoning": "It matches your goal because compensation and growth both improve.",
	"tasks": [{"title": "Call the recruiter", "priority": 1}]
}`

func TestEngine_Generate(t *testing.T) {
	fake := &fakeLLM{reply: validReply}
	engine := NewEngine(fake)

	d, detail, err := engine.Generate(context.Background(), "Should I take the offer? I want growth.", "")
	require.NoError(t, err)

	assert.Equal(t, "Take the offer", d.Decision)
	assert.Contains(t, d.Reasoning, datatypes.AlignmentQuestion)
	assert.Greater(t, d.Confidence, 0.0)
	require.NotNil(t, detail)
	assert.Equal(t, d.Confidence, detail.Overall)
	assert.Len(t, detail.Factors, 5)
	assert.True(t, fake.lastOpts.JSONResponse, "decision calls must request JSON mode")
	require.Len(t, fake.calls, 1)
	assert.Equal(t, datatypes.RoleSystem, fake.calls[0][0].Role)
}

func TestEngine_Generate_ContextRaisesConfidence(t *testing.T) {
	fake := &fakeLLM{reply: validReply}
	engine := NewEngine(fake)
	input := "Should I take the offer? I want growth."

	without, _, err := engine.Generate(context.Background(), input, "")
	require.NoError(t, err)
	with, _, err := engine.Generate(context.Background(), input, "Recent decisions:\n- Asked for a raise")
	require.NoError(t, err)

	assert.Greater(t, with.Confidence, without.Confidence)
}

func TestEngine_Generate_ProviderErrorPassesThrough(t *testing.T) {
	fake := &fakeLLM{err: llm.NewProviderError(llm.CodeRateLimited, assert.AnError)}
	engine := NewEngine(fake)

	_, _, err := engine.Generate(context.Background(), "input text here", "")
	require.Error(t, err)
	assert.Equal(t, llm.CodeRateLimited, llm.CodeOf(err))
}

func TestEngine_Generate_ParseErrorSurfaced(t *testing.T) {
	fake := &fakeLLM{reply: "sorry, I cannot answer in JSON"}
	engine := NewEngine(fake)

	_, _, err := engine.Generate(context.Background(), "input text here", "")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrMalformedJSON, pe.Code)
}

func TestEngine_Refine(t *testing.T) {
	fake := &fakeLLM{reply: validReply}
	engine := NewEngine(fake)
	prior := &datatypes.Decision{
		Decision:  "Stay put",
		Reasoning: "r",
		Tasks:     []datatypes.Task{{Title: "wait", Priority: 1}},
	}

	d, _, err := engine.Refine(context.Background(), prior, "I changed my mind about relocation.")
	require.NoError(t, err)
	assert.Equal(t, "Take the offer", d.Decision)

	require.Len(t, fake.calls, 1)
	// The refinement user turn embeds the prior decision verbatim.
	assert.Contains(t, fake.calls[0][1].Content, "Stay put")
}

func TestEngine_Clarify(t *testing.T) {
	fake := &fakeLLM{reply: validReply}
	engine := NewEngine(fake)

	_, _, err := engine.Clarify(context.Background(), "Should I switch?", "Careers, not teams.")
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Len(t, fake.calls[0], 4)
}

func TestEngine_RecordsLLMLatency(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	fake := &fakeLLM{reply: validReply}
	engine := NewEngine(fake).WithMetrics(metrics, "openai")

	_, _, err := engine.Generate(context.Background(), "Should I take the offer?", "")
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.LLMCallSeconds))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.LLMErrorsTotal))
}

func TestEngine_RecordsLLMErrors(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	fake := &fakeLLM{err: llm.NewProviderError(llm.CodeRateLimited, nil)}
	engine := NewEngine(fake).WithMetrics(metrics, "openai")

	_, _, err := engine.Generate(context.Background(), "Should I take the offer?", "")
	require.Error(t, err)

	got := testutil.ToFloat64(
		metrics.LLMErrorsTotal.WithLabelValues("openai", string(llm.CodeRateLimited)))
	assert.Equal(t, 1.0, got)
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.LLMCallSeconds),
		"failed calls must not record a latency sample")
}

func TestEngine_HealthCheck(t *testing.T) {
	t.Run("healthy backend", func(t *testing.T) {
		engine := NewEngine(&fakeLLM{reply: "ok"})
		status, err := engine.HealthCheck(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "ok", status)
	})

	t.Run("failing backend reports without throwing", func(t *testing.T) {
		engine := NewEngine(&fakeLLM{err: llm.NewProviderError(llm.CodeAuthFailed, assert.AnError)})
		status, err := engine.HealthCheck(context.Background())
		assert.Error(t, err)
		assert.Equal(t, "error", status)
	})
}
