// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/ktresler/Waypoint/pkg/textnorm"
	"github.com/ktresler/Waypoint/services/llm"
	"github.com/ktresler/Waypoint/services/orchestrator/conversation"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
	"github.com/ktresler/Waypoint/services/session"
)

var sessionTracer = otel.Tracer("waypoint.orchestrator.handlers.sessions")

// Default page size for session listings.
const defaultSessionListLimit = 20

// SessionDeps bundles everything the session handlers need.
type SessionDeps struct {
	Store   session.Store
	Engine  *session.Engine
	Mirror  conversation.Mirror
	Metrics *observability.Metrics
}

func (d *SessionDeps) recordRequest(endpoint observability.Endpoint, success bool) {
	if d.Metrics != nil {
		d.Metrics.RecordRequest(endpoint, success)
	}
}

func (d *SessionDeps) mirror() conversation.Mirror {
	if d.Mirror == nil {
		return conversation.NopMirror{}
	}
	return d.Mirror
}

// HandleCreateSession handles POST /v1/sessions.
//
// New sessions always start in the DUMP phase.
func HandleCreateSession(deps *SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandleCreateSession")
		defer span.End()

		// The body is optional; an empty POST creates an anonymous session.
		var req datatypes.CreateSessionRequest
		_ = c.ShouldBindJSON(&req)

		sess, err := deps.Store.Create(ctx, resolveOwner(c, req.OwnerID))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}

		if deps.Metrics != nil {
			deps.Metrics.SessionCreated()
		}
		if err := deps.mirror().MirrorSession(ctx, sess); err != nil {
			slog.Warn("Session mirror degraded", "session_id", sess.ID, "error", err)
			if deps.Metrics != nil {
				deps.Metrics.RecordPersistFailure("session")
			}
		}

		c.JSON(http.StatusCreated, sess)
	}
}

// HandlePostSessionMessage handles POST /v1/sessions/:sessionId/messages.
//
// # Description
//
// Appends the user's message and a phase-governed assistant reply to the
// session log in a single atomic batch. The reply goes through the phase
// rule engine: rule violations trigger bounded regeneration, and a reply
// that still violates after the attempt cap is returned flagged as
// unvalidated rather than dropped.
func HandlePostSessionMessage(deps *SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandlePostSessionMessage")
		defer span.End()
		sessionID := c.Param("sessionId")

		var req datatypes.PostSessionMessageRequest
		if err := c.BindJSON(&req); err != nil {
			deps.recordRequest(observability.EndpointSessionMessage, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			deps.recordRequest(observability.EndpointSessionMessage, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		check := textnorm.Validate(req.Content)
		if !check.Valid {
			deps.recordRequest(observability.EndpointSessionMessage, false)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "message validation failed",
				"errors": check.Errors,
			})
			return
		}

		full, err := deps.Store.GetWithMessages(ctx, sessionID)
		if err != nil {
			writeSessionError(c, err)
			deps.recordRequest(observability.EndpointSessionMessage, false)
			return
		}

		history := make([]datatypes.Message, 0, len(full.Messages)+1)
		for _, m := range full.Messages {
			// Corrective reminders and other system turns stay internal.
			if m.Role == datatypes.RoleSystem {
				continue
			}
			history = append(history, datatypes.Message{Role: m.Role, Content: m.Content})
		}
		history = append(history, datatypes.Message{
			Role:    datatypes.RoleUser,
			Content: check.Normalized,
		})

		phase := full.Session.CurrentPhase
		result, err := deps.Engine.GenerateReply(ctx, phase, history)
		if err != nil {
			var notSupported *session.ErrPhaseNotSupported
			if errors.As(err, &notSupported) {
				c.JSON(http.StatusConflict, gin.H{"error": notSupported.Error()})
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				code := llm.CodeOf(err)
				status := http.StatusBadGateway
				if code == llm.CodeQuotaExceeded || code == llm.CodeRateLimited {
					status = http.StatusTooManyRequests
				}
				slog.Error("Session reply failed", "session_id", sessionID, "code", code, "error", err)
				c.JSON(status, gin.H{"error": err.Error(), "code": code})
			}
			deps.recordRequest(observability.EndpointSessionMessage, false)
			return
		}

		if deps.Metrics != nil {
			deps.Metrics.RecordReply(string(phase), result.Attempts, result.Violations, !result.ValidationPassed)
		}

		stored, err := deps.Store.AppendMessages(ctx, sessionID, []datatypes.Message{
			{Role: datatypes.RoleUser, Content: check.Normalized},
			{Role: datatypes.RoleAssistant, Content: result.Content},
		})
		if err != nil {
			writeSessionError(c, err)
			deps.recordRequest(observability.EndpointSessionMessage, false)
			return
		}

		if err := deps.mirror().MirrorMessages(ctx, stored); err != nil {
			slog.Warn("Message mirror degraded", "session_id", sessionID, "error", err)
			if deps.Metrics != nil {
				deps.Metrics.RecordPersistFailure("message")
			}
		}

		deps.recordRequest(observability.EndpointSessionMessage, true)
		c.JSON(http.StatusOK, datatypes.SessionMessageResponse{
			Message:          stored[1],
			Phase:            phase,
			ValidationPassed: result.ValidationPassed,
			Regenerated:      result.Regenerated,
			Violations:       result.Violations,
		})
	}
}

// HandleAdvancePhase handles POST /v1/sessions/:sessionId/advance.
//
// Phase transitions are forward-only and currently rejected out of DUMP
// because the next phase has no implemented behavior. The rejection is a
// 409 carrying the reason, not a validation error.
func HandleAdvancePhase(deps *SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandleAdvancePhase")
		defer span.End()
		sessionID := c.Param("sessionId")

		sess, err := deps.Store.AdvancePhase(ctx, sessionID)
		if err != nil {
			var stateErr *session.StateError
			if errors.As(err, &stateErr) {
				deps.recordRequest(observability.EndpointSessionAdvance, false)
				c.JSON(http.StatusConflict, gin.H{
					"error": stateErr.Error(),
					"phase": string(stateErr.Phase),
				})
				return
			}
			writeSessionError(c, err)
			deps.recordRequest(observability.EndpointSessionAdvance, false)
			return
		}

		if err := deps.mirror().MirrorSession(ctx, sess); err != nil {
			slog.Warn("Session mirror degraded", "session_id", sess.ID, "error", err)
		}

		deps.recordRequest(observability.EndpointSessionAdvance, true)
		c.JSON(http.StatusOK, sess)
	}
}

// HandleGetSession handles GET /v1/sessions/:sessionId.
func HandleGetSession(deps *SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandleGetSession")
		defer span.End()

		full, err := deps.Store.GetWithMessages(ctx, c.Param("sessionId"))
		if err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, full)
	}
}

// HandleListSessions handles GET /v1/sessions.
//
// Lists the caller's sessions most recently updated first. An explicit
// owner_id query parameter overrides the resolved identity.
func HandleListSessions(deps *SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandleListSessions")
		defer span.End()

		owner := resolveOwner(c, c.Query("owner_id"))
		limit := defaultSessionListLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		sessions, err := deps.Store.ListRecentByOwner(ctx, owner, limit)
		if err != nil {
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

// writeSessionError maps store errors to HTTP statuses.
func writeSessionError(c *gin.Context, err error) {
	var notFound *session.ErrSessionNotFound
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return
	}
	slog.Error("Session store operation failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "session store failure"})
}
