// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/session"
)

func sessionRouter(t *testing.T, client *stubLLM) (*gin.Engine, *session.MemoryStore) {
	t.Helper()
	policy, err := session.NewPolicy()
	if err != nil {
		t.Fatalf("failed to build policy: %v", err)
	}
	store := session.NewMemoryStore()
	deps := &SessionDeps{
		Store:  store,
		Engine: session.NewEngine(client, policy, nil),
	}

	router := gin.New()
	router.POST("/v1/sessions", HandleCreateSession(deps))
	router.GET("/v1/sessions", HandleListSessions(deps))
	router.GET("/v1/sessions/:sessionId", HandleGetSession(deps))
	router.POST("/v1/sessions/:sessionId/messages", HandlePostSessionMessage(deps))
	router.POST("/v1/sessions/:sessionId/advance", HandleAdvancePhase(deps))
	return router, store
}

func createSession(t *testing.T, router *gin.Engine) datatypes.Session {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/sessions", map[string]any{"owner_id": "alice"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var sess datatypes.Session
	decodeBody(t, w, &sess)
	return sess
}

func TestHandleCreateSessionStartsInDump(t *testing.T) {
	router, _ := sessionRouter(t, &stubLLM{replies: []string{"unused"}})
	sess := createSession(t, router)

	if sess.CurrentPhase != datatypes.PhaseDump {
		t.Errorf("phase = %s, want %s", sess.CurrentPhase, datatypes.PhaseDump)
	}
	if sess.ID == "" {
		t.Error("session ID must be populated")
	}
	if sess.OwnerID != "alice" {
		t.Errorf("owner = %q, want alice", sess.OwnerID)
	}
}

func TestHandlePostSessionMessage(t *testing.T) {
	reply := "It sounds like the move and the job change are colliding.\nThere is a lot of weight in both."
	client := &stubLLM{replies: []string{reply}}
	router, store := sessionRouter(t, client)
	sess := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", map[string]any{
		"content": "Everything is happening at once, the move, the job, all of it.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp datatypes.SessionMessageResponse
	decodeBody(t, w, &resp)

	if !resp.ValidationPassed {
		t.Errorf("validation_passed = false, violations = %v", resp.Violations)
	}
	if resp.Regenerated {
		t.Error("regenerated = true for a clean first reply")
	}
	if resp.Phase != datatypes.PhaseDump {
		t.Errorf("phase = %s, want DUMP", resp.Phase)
	}
	if resp.Message.Role != datatypes.RoleAssistant || resp.Message.Content != reply {
		t.Errorf("unexpected stored reply: %+v", resp.Message)
	}

	// Both the user turn and the reply land in the session log.
	full, err := store.GetWithMessages(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("store lookup failed: %v", err)
	}
	if len(full.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(full.Messages))
	}
	if full.Messages[0].Role != datatypes.RoleUser || full.Messages[1].Role != datatypes.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", full.Messages[0].Role, full.Messages[1].Role)
	}
}

func TestHandlePostSessionMessageDegradedReply(t *testing.T) {
	// Every attempt violates the DUMP rules, so the reply comes back
	// flagged instead of dropped.
	client := &stubLLM{replies: []string{"Have you tried making a list?"}}
	router, _ := sessionRouter(t, client)
	sess := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", map[string]any{
		"content": "I cannot decide where to even start with all of this.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp datatypes.SessionMessageResponse
	decodeBody(t, w, &resp)

	if resp.ValidationPassed {
		t.Error("validation_passed = true for a rule-breaking reply")
	}
	if !resp.Regenerated {
		t.Error("regenerated = false after exhausted attempts")
	}
	if len(resp.Violations) == 0 {
		t.Error("violations must be reported for a degraded reply")
	}
	if client.calls != session.MaxAttempts {
		t.Errorf("LLM calls = %d, want %d", client.calls, session.MaxAttempts)
	}
}

func TestHandlePostSessionMessageValidation(t *testing.T) {
	client := &stubLLM{replies: []string{"unused"}}
	router, _ := sessionRouter(t, client)
	sess := createSession(t, router)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"missing content", map[string]any{}, http.StatusBadRequest},
		{"too short", map[string]any{"content": "ok"}, http.StatusUnprocessableEntity},
		{"malformed json", `{"content": `, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
	if client.calls != 0 {
		t.Error("rejected messages must not reach the LLM")
	}
}

func TestHandlePostSessionMessageUnknownSession(t *testing.T) {
	router, _ := sessionRouter(t, &stubLLM{replies: []string{"unused"}})
	w := doJSON(t, router, http.MethodPost, "/v1/sessions/nope/messages", map[string]any{
		"content": "A perfectly reasonable message body.",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleAdvancePhaseRejected(t *testing.T) {
	router, store := sessionRouter(t, &stubLLM{replies: []string{"unused"}})
	sess := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+sess.ID+"/advance", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusConflict, w.Body.String())
	}

	var body map[string]any
	decodeBody(t, w, &body)
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "not implemented") {
		t.Errorf("error = %q, want a not-implemented reason", msg)
	}

	// The session stays in DUMP.
	got, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("store lookup failed: %v", err)
	}
	if got.CurrentPhase != datatypes.PhaseDump {
		t.Errorf("phase = %s after rejected advance", got.CurrentPhase)
	}
}

func TestHandleGetSession(t *testing.T) {
	router, _ := sessionRouter(t, &stubLLM{replies: []string{"unused"}})
	sess := createSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/v1/sessions/"+sess.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var full datatypes.SessionWithMessages
	decodeBody(t, w, &full)
	if full.Session.ID != sess.ID {
		t.Errorf("session ID mismatch: %s vs %s", full.Session.ID, sess.ID)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/sessions/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleListSessions(t *testing.T) {
	router, _ := sessionRouter(t, &stubLLM{replies: []string{"unused"}})
	createSession(t, router)
	createSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/v1/sessions?owner_id=alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Sessions []datatypes.Session `json:"sessions"`
	}
	decodeBody(t, w, &body)
	if len(body.Sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(body.Sessions))
	}

	w = doJSON(t, router, http.MethodGet, "/v1/sessions?owner_id=alice&limit=zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a bad limit", w.Code)
	}
}
