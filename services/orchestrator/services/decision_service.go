// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services provides business logic services for the orchestrator.
//
// This package contains service structs that encapsulate business logic,
// separating it from HTTP handlers. Services are responsible for:
//   - Orchestrating calls to external services (LLM, Weaviate)
//   - Applying business rules and degradation policy
//
// Services are designed to be:
//   - Testable: Dependencies are injected via constructors
//   - Composable: Services can call other services
//   - Traceable: All methods accept context for distributed tracing
package services

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
)

var decisionServiceTracer = otel.Tracer("waypoint.orchestrator.services.decision")

// How many prior decisions feed the context block of a new request.
const contextDecisionLimit = 5

// Compile-time interface implementation checks.
var (
	_ ContextProvider   = (*DecisionStoreService)(nil)
	_ DecisionPersister = (*DecisionStoreService)(nil)
)

// =============================================================================
// Interfaces
// =============================================================================

// ContextProvider supplies prior-decision context for prompt assembly.
//
// # Description
//
// When a request sets use_context, the orchestrator asks a ContextProvider
// for a formatted block of the owner's recent decisions. Providers must
// degrade to an empty string instead of failing: context is an enrichment,
// never a precondition.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ContextProvider interface {
	// RecentContext returns a formatted context block for the owner, or ""
	// when nothing is available.
	RecentContext(ctx context.Context, ownerID string) string
}

// DecisionPersister persists generated decisions.
//
// Persistence is requested per-call and best-effort; callers surface a
// failure as persisted=false on the response, never as a request error.
type DecisionPersister interface {
	PersistDecision(ctx context.Context, ownerID string, d datatypes.Decision) error
}

// =============================================================================
// Weaviate-backed implementation
// =============================================================================

// DecisionStoreService implements ContextProvider and DecisionPersister
// over Weaviate. A nil client disables both capabilities gracefully.
type DecisionStoreService struct {
	client  *weaviate.Client
	metrics *observability.Metrics
}

// NewDecisionStoreService creates the service. Both arguments may be nil;
// a nil client degrades every operation, a nil metrics skips counting.
func NewDecisionStoreService(client *weaviate.Client, metrics *observability.Metrics) *DecisionStoreService {
	return &DecisionStoreService{client: client, metrics: metrics}
}

// RecentContext implements ContextProvider.
func (s *DecisionStoreService) RecentContext(ctx context.Context, ownerID string) string {
	if s.client == nil {
		return ""
	}
	ctx, span := decisionServiceTracer.Start(ctx, "DecisionStoreService.RecentContext")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	return datatypes.RecentDecisionContext(ctx, s.client, ownerID, contextDecisionLimit)
}

// PersistDecision implements DecisionPersister.
func (s *DecisionStoreService) PersistDecision(ctx context.Context, ownerID string, d datatypes.Decision) error {
	if s.client == nil {
		return ErrPersistenceDisabled
	}
	ctx, span := decisionServiceTracer.Start(ctx, "DecisionStoreService.PersistDecision")
	defer span.End()

	record := &datatypes.DecisionRecord{OwnerID: ownerID, Decision: d}
	if err := record.Save(ctx, s.client); err != nil {
		if s.metrics != nil {
			s.metrics.RecordPersistFailure("decision")
		}
		return err
	}
	return nil
}
