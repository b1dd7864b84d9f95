// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation mirrors thinking-session conversations into
// Weaviate.
//
// # Description
//
// The in-memory session store is authoritative for live traffic; this
// package provides the durable shadow copy. Writes are best-effort: a
// mirror failure never fails the request that triggered it, it is logged
// and counted and the session continues in memory.
//
// # Architecture
//
// Two classes back the mirror:
//   - ThinkingSession: one object per session, updated on phase changes
//   - SessionMessage: one object per message, append-only
//
// # Thread Safety
//
// All implementations are safe for concurrent use.
package conversation

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

var mirrorTracer = otel.Tracer("waypoint.orchestrator.conversation")

// Mirror shadows session state into a durable store.
//
// Implementations must be safe for concurrent use. Callers treat every
// error as a degradation signal, not a request failure.
type Mirror interface {
	// MirrorSession writes or refreshes the session header.
	MirrorSession(ctx context.Context, sess datatypes.Session) error

	// MirrorMessages appends the given messages to the durable log.
	MirrorMessages(ctx context.Context, messages []datatypes.SessionMessage) error
}

// ===== Weaviate Mirror =====

// WeaviateMirror is the production Mirror over a Weaviate instance whose
// schema was prepared by datatypes.EnsureWeaviateSchema.
type WeaviateMirror struct {
	client *weaviate.Client
}

var _ Mirror = (*WeaviateMirror)(nil)

// NewWeaviateMirror creates a mirror over the given client.
func NewWeaviateMirror(client *weaviate.Client) *WeaviateMirror {
	return &WeaviateMirror{client: client}
}

func (m *WeaviateMirror) MirrorSession(ctx context.Context, sess datatypes.Session) error {
	ctx, span := mirrorTracer.Start(ctx, "WeaviateMirror.MirrorSession")
	defer span.End()

	_, err := m.client.Data().Creator().
		WithClassName("ThinkingSession").
		WithProperties(sessionProperties(sess)).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mirror session %s: %w", sess.ID, err)
	}
	return nil
}

func (m *WeaviateMirror) MirrorMessages(ctx context.Context, messages []datatypes.SessionMessage) error {
	ctx, span := mirrorTracer.Start(ctx, "WeaviateMirror.MirrorMessages")
	defer span.End()

	for _, msg := range messages {
		_, err := m.client.Data().Creator().
			WithClassName("SessionMessage").
			WithProperties(messageProperties(msg)).
			Do(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to mirror message %s: %w", msg.ID, err)
		}
	}
	return nil
}

func sessionProperties(sess datatypes.Session) map[string]interface{} {
	return map[string]interface{}{
		"session_id":    sess.ID,
		"owner_id":      sess.OwnerID,
		"current_phase": string(sess.CurrentPhase),
		"updated_at":    sess.UpdatedAt.UnixMilli(),
		"timestamp":     sess.CreatedAt.UnixMilli(),
	}
}

func messageProperties(msg datatypes.SessionMessage) map[string]interface{} {
	return map[string]interface{}{
		"session_id": msg.SessionID,
		"role":       msg.Role,
		"content":    msg.Content,
		"phase":      string(msg.Phase),
		"timestamp":  msg.CreatedAt.UnixMilli(),
	}
}

// ===== Nop Mirror =====

// NopMirror is the Mirror used when Weaviate is not configured. All
// operations succeed without doing anything.
type NopMirror struct{}

var _ Mirror = (*NopMirror)(nil)

func (NopMirror) MirrorSession(ctx context.Context, sess datatypes.Session) error { return nil }

func (NopMirror) MirrorMessages(ctx context.Context, messages []datatypes.SessionMessage) error {
	return nil
}
