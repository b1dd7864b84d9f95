// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Weaviate persistence for decisions. Persistence is an optional side
// effect: callers treat Save failures as a degraded (unpersisted) response,
// never as a failure of the generation itself.

package datatypes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
)

var persistTracer = otel.Tracer("waypoint.orchestrator.datatypes")

// DecisionRecord links a generated decision to its owner for persistence.
type DecisionRecord struct {
	OwnerID  string
	Decision Decision
}

// Save writes the decision to Weaviate.
//
// # Description
//
// Serializes the task list to JSON and creates a Decision object. The task
// list is stored as a single text property; tasks are never queried
// individually, only replayed with their decision.
//
// # Outputs
//
//   - error: Non-nil if the write failed. Callers log and degrade.
func (r *DecisionRecord) Save(ctx context.Context, client *weaviate.Client) error {
	if strings.TrimSpace(r.Decision.Decision) == "" {
		return nil
	}
	ctx, span := persistTracer.Start(ctx, "DecisionRecord.Save")
	defer span.End()

	tasksJSON, err := json.Marshal(r.Decision.Tasks)
	if err != nil {
		return fmt.Errorf("failed to serialize tasks: %w", err)
	}

	properties := map[string]interface{}{
		"decision":   r.Decision.Decision,
		"reasoning":  r.Decision.Reasoning,
		"tasks_json": string(tasksJSON),
		"confidence": r.Decision.Confidence,
		"owner_id":   r.OwnerID,
		"timestamp":  time.Now().UnixMilli(),
	}

	_, err = client.Data().Creator().
		WithClassName("Decision").
		WithProperties(properties).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to save Decision object to Weaviate: %w", err)
	}

	slog.Info("Successfully saved decision", "owner_id", r.OwnerID)
	return nil
}

// RecentDecisionContext fetches the owner's most recent persisted decisions
// and formats them as a context block for prompt assembly.
//
// # Description
//
// This is the concrete context-provider capability behind the UseContext
// request flag. Unavailability degrades to an empty string: a decision
// request must still succeed with no context when Weaviate is down.
//
// # Outputs
//
//   - string: Formatted context block, or "" when nothing is available.
func RecentDecisionContext(ctx context.Context, client *weaviate.Client, ownerID string, limit int) string {
	if client == nil || ownerID == "" {
		return ""
	}
	ctx, span := persistTracer.Start(ctx, "RecentDecisionContext")
	defer span.End()

	where := filters.Where().
		WithPath([]string{"owner_id"}).
		WithOperator(filters.Equal).
		WithValueString(ownerID)

	fields := []graphql.Field{
		{Name: "decision"},
		{Name: "timestamp"},
	}

	resp, err := client.GraphQL().Get().
		WithClassName("Decision").
		WithWhere(where).
		WithFields(fields...).
		WithSort(graphql.Sort{Path: []string{"timestamp"}, Order: graphql.Desc}).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Warn("Context lookup failed, continuing without context", "owner_id", ownerID, "error", err)
		return ""
	}

	var lines []string
	if get, ok := resp.Data["Get"].(map[string]interface{}); ok {
		if decisions, ok := get["Decision"].([]interface{}); ok {
			for _, d := range decisions {
				if props, ok := d.(map[string]interface{}); ok {
					if text, ok := props["decision"].(string); ok && text != "" {
						lines = append(lines, "- "+text)
					}
				}
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Recent decisions:\n" + strings.Join(lines, "\n")
}
