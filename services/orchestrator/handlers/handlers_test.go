// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Shared test fixtures for the handler tests.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ktresler/Waypoint/services/llm"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// stubLLM returns scripted replies in order. When the script runs out the
// last reply repeats, which keeps bounded-retry tests simple.
type stubLLM struct {
	replies []string
	err     error
	calls   int
}

func (s *stubLLM) Chat(ctx context.Context, messages []datatypes.Message, params llm.SamplingParams) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return s.replies[idx], nil
}

const decisionReply = `{
	"decision": "Focus on the product launch",
	"reasoning": "The launch unblocks revenue because everything else depends on it.",
	"tasks": [
		{"title": "Freeze the feature list", "priority": 2},
		{"title": "Write the launch checklist", "priority": 1}
	]
}`

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}
