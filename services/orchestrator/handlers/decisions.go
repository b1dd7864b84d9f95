// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the Gin HTTP handlers for the orchestrator.
//
// Handlers are thin: they bind and validate the request, resolve the
// caller's identity, delegate to the decision or session engines, and map
// engine errors to HTTP statuses. Business logic lives in the services.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ktresler/Waypoint/pkg/textnorm"
	"github.com/ktresler/Waypoint/services/decision"
	"github.com/ktresler/Waypoint/services/llm"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/middleware"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
	"github.com/ktresler/Waypoint/services/orchestrator/services"
)

var decisionTracer = otel.Tracer("waypoint.orchestrator.handlers")

// DecisionDeps bundles everything the decision handlers need.
//
// # Fields
//
//   - Engine: The decision engine. Required.
//   - Context: Prior-decision context provider. May be nil.
//   - Persister: Decision persistence. May be nil.
//   - Metrics: Request metrics. May be nil (tests).
type DecisionDeps struct {
	Engine    *decision.Engine
	Context   services.ContextProvider
	Persister services.DecisionPersister
	Metrics   *observability.Metrics
}

func (d *DecisionDeps) recordRequest(endpoint observability.Endpoint, success bool) {
	if d.Metrics != nil {
		d.Metrics.RecordRequest(endpoint, success)
	}
}

func (d *DecisionDeps) recordConfidence(detail *datatypes.ConfidenceResult) {
	if d.Metrics != nil && detail != nil {
		d.Metrics.RecordConfidence(detail.Level, detail.Overall)
	}
}

// HandleGenerateDecision handles POST /v1/decisions.
//
// # Description
//
// Validates and normalizes the input, optionally fetches prior-decision
// context, runs the generation flow, and optionally persists the result.
// Context and persistence failures degrade (context_used=false,
// persisted=false); only validation, provider, and parse failures produce
// error statuses.
func HandleGenerateDecision(deps *DecisionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := decisionTracer.Start(c.Request.Context(), "HandleGenerateDecision")
		defer span.End()
		started := time.Now()

		var req datatypes.GenerateDecisionRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			deps.recordRequest(observability.EndpointGenerate, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			deps.recordRequest(observability.EndpointGenerate, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		check := textnorm.Validate(req.Input)
		if !check.Valid {
			deps.recordRequest(observability.EndpointGenerate, false)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "input validation failed",
				"errors": check.Errors,
			})
			return
		}

		owner := resolveOwner(c, req.OwnerID)
		contextBlock := ""
		if req.UseContext && deps.Context != nil {
			contextBlock = deps.Context.RecentContext(ctx, owner)
		}

		d, detail, err := deps.Engine.Generate(ctx, check.Normalized, contextBlock)
		if err != nil {
			writeEngineError(c, span, err)
			deps.recordRequest(observability.EndpointGenerate, false)
			return
		}
		deps.recordConfidence(detail)

		resp := datatypes.NewDecisionResponse(req.RequestID, d)
		resp.ConfidenceDetail = detail
		resp.ContextUsed = contextBlock != ""
		resp.Persisted = deps.persist(ctx, req.Persist, owner, d)
		resp.ProcessingTimeMs = time.Since(started).Milliseconds()

		deps.recordRequest(observability.EndpointGenerate, true)
		c.JSON(http.StatusOK, resp)
	}
}

// HandleRefineDecision handles POST /v1/decisions/refine.
func HandleRefineDecision(deps *DecisionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := decisionTracer.Start(c.Request.Context(), "HandleRefineDecision")
		defer span.End()
		started := time.Now()

		var req datatypes.RefineDecisionRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			deps.recordRequest(observability.EndpointRefine, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			deps.recordRequest(observability.EndpointRefine, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Feedback) == "" {
			deps.recordRequest(observability.EndpointRefine, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "feedback must not be empty"})
			return
		}

		d, detail, err := deps.Engine.Refine(ctx, &req.Decision, textnorm.Normalize(req.Feedback))
		if err != nil {
			writeEngineError(c, span, err)
			deps.recordRequest(observability.EndpointRefine, false)
			return
		}
		deps.recordConfidence(detail)

		resp := datatypes.NewDecisionResponse(req.RequestID, d)
		resp.ConfidenceDetail = detail
		resp.Persisted = deps.persist(ctx, req.Persist, resolveOwner(c, req.OwnerID), d)
		resp.ProcessingTimeMs = time.Since(started).Milliseconds()

		deps.recordRequest(observability.EndpointRefine, true)
		c.JSON(http.StatusOK, resp)
	}
}

// HandleClarifyDecision handles POST /v1/decisions/clarify.
func HandleClarifyDecision(deps *DecisionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := decisionTracer.Start(c.Request.Context(), "HandleClarifyDecision")
		defer span.End()
		started := time.Now()

		var req datatypes.ClarifyDecisionRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			deps.recordRequest(observability.EndpointClarify, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			deps.recordRequest(observability.EndpointClarify, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		clarification := textnorm.Validate(req.Clarification)
		if !clarification.Valid {
			deps.recordRequest(observability.EndpointClarify, false)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "clarification validation failed",
				"errors": clarification.Errors,
			})
			return
		}

		d, detail, err := deps.Engine.Clarify(ctx,
			textnorm.Normalize(req.OriginalInput), clarification.Normalized)
		if err != nil {
			writeEngineError(c, span, err)
			deps.recordRequest(observability.EndpointClarify, false)
			return
		}
		deps.recordConfidence(detail)

		resp := datatypes.NewDecisionResponse(req.RequestID, d)
		resp.ConfidenceDetail = detail
		resp.Persisted = deps.persist(ctx, req.Persist, resolveOwner(c, req.OwnerID), d)
		resp.ProcessingTimeMs = time.Since(started).Milliseconds()

		deps.recordRequest(observability.EndpointClarify, true)
		c.JSON(http.StatusOK, resp)
	}
}

// persist attempts best-effort persistence and reports whether it stuck.
func (d *DecisionDeps) persist(ctx context.Context, requested bool, owner string, dec *datatypes.Decision) bool {
	if !requested || d.Persister == nil {
		return false
	}
	if err := d.Persister.PersistDecision(ctx, owner, *dec); err != nil {
		slog.Warn("Decision persistence degraded", "owner_id", owner, "error", err)
		return false
	}
	return true
}

// resolveOwner prefers the request body's owner over the middleware's
// resolved identity, so API clients can act on behalf of a user.
func resolveOwner(c *gin.Context, bodyOwner string) string {
	if strings.TrimSpace(bodyOwner) != "" {
		return bodyOwner
	}
	return middleware.GetOwnerID(c)
}

// writeEngineError maps decision engine errors to HTTP statuses.
//
// Provider quota and rate limits map to 429, auth to 502 (the service's
// credentials, not the caller's), parse failures to 502 as well: the
// upstream model broke the contract, the caller did nothing wrong.
func writeEngineError(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var parseErr *decision.ParseError
	if errors.As(err, &parseErr) {
		slog.Error("Decision parse failed", "code", parseErr.Code, "fields", parseErr.Fields)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "the model returned an unusable response",
			"code":   parseErr.Code,
			"fields": parseErr.Fields,
		})
		return
	}

	code := llm.CodeOf(err)
	status := http.StatusBadGateway
	switch code {
	case llm.CodeQuotaExceeded, llm.CodeRateLimited:
		status = http.StatusTooManyRequests
	}
	slog.Error("Decision engine call failed", "code", code, "error", err)
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
