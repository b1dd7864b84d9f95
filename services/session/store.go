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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// ErrSessionNotFound is returned for lookups of unknown session IDs.
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// Store persists thinking sessions and their ordered message logs.
//
// # Description
//
// Implementations must serialize appends per session: two concurrent
// AppendMessages calls on the same session may interleave with each other
// at the batch level, but a single batch is appended atomically and in
// order. Phase transitions go through AdvancePhase only.
type Store interface {
	// Create creates a new session in the DUMP phase.
	Create(ctx context.Context, ownerID string) (datatypes.Session, error)

	// Get returns the session header without its messages.
	Get(ctx context.Context, sessionID string) (datatypes.Session, error)

	// GetWithMessages returns the session and its full ordered log.
	GetWithMessages(ctx context.Context, sessionID string) (datatypes.SessionWithMessages, error)

	// AppendMessages appends a batch of messages atomically, stamping IDs,
	// session ID, the session's current phase, and creation time. It returns
	// the stored messages. Nothing is appended if ctx is already done.
	AppendMessages(ctx context.Context, sessionID string, messages []datatypes.Message) ([]datatypes.SessionMessage, error)

	// AdvancePhase moves the session to the next phase, subject to the
	// forward-only rule and per-phase availability. Returns the updated
	// session, or *StateError when the transition is rejected.
	AdvancePhase(ctx context.Context, sessionID string) (datatypes.Session, error)

	// ListRecentByOwner returns up to limit session headers for an owner,
	// most recently updated first. An empty ownerID lists all sessions.
	ListRecentByOwner(ctx context.Context, ownerID string, limit int) ([]datatypes.Session, error)
}

// ===== In-Memory Store =====

type memorySession struct {
	mu       sync.Mutex
	session  datatypes.Session
	messages []datatypes.SessionMessage
}

// MemoryStore is the in-process Store used by default. Sessions live for
// the lifetime of the process; durable mirroring is layered on top by the
// orchestrator, not here.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) Create(ctx context.Context, ownerID string) (datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, err
	}
	now := time.Now().UTC()
	sess := datatypes.Session{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		CurrentPhase: datatypes.PhaseDump,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = &memorySession{session: sess}
	s.mu.Unlock()
	return sess, nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (datatypes.Session, error) {
	ms, err := s.lookup(sessionID)
	if err != nil {
		return datatypes.Session{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.session, nil
}

func (s *MemoryStore) GetWithMessages(ctx context.Context, sessionID string) (datatypes.SessionWithMessages, error) {
	ms, err := s.lookup(sessionID)
	if err != nil {
		return datatypes.SessionWithMessages{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := datatypes.SessionWithMessages{
		Session:  ms.session,
		Messages: make([]datatypes.SessionMessage, len(ms.messages)),
	}
	copy(out.Messages, ms.messages)
	return out, nil
}

func (s *MemoryStore) AppendMessages(ctx context.Context, sessionID string, messages []datatypes.Message) ([]datatypes.SessionMessage, error) {
	ms, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// Check cancellation after taking the lock so a canceled call never
	// leaves a partial batch behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stored := make([]datatypes.SessionMessage, 0, len(messages))
	for _, m := range messages {
		stored = append(stored, datatypes.SessionMessage{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      m.Role,
			Content:   m.Content,
			Phase:     ms.session.CurrentPhase,
			CreatedAt: now,
		})
	}
	ms.messages = append(ms.messages, stored...)
	ms.session.UpdatedAt = now
	return stored, nil
}

func (s *MemoryStore) AdvancePhase(ctx context.Context, sessionID string) (datatypes.Session, error) {
	ms, err := s.lookup(sessionID)
	if err != nil {
		return datatypes.Session{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, err
	}

	next, err := AdvanceTarget(ms.session.CurrentPhase)
	if err != nil {
		return datatypes.Session{}, err
	}
	ms.session.CurrentPhase = next
	ms.session.UpdatedAt = time.Now().UTC()
	return ms.session, nil
}

func (s *MemoryStore) ListRecentByOwner(ctx context.Context, ownerID string, limit int) ([]datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	headers := make([]datatypes.Session, 0, len(s.sessions))
	for _, ms := range s.sessions {
		ms.mu.Lock()
		sess := ms.session
		ms.mu.Unlock()
		if ownerID != "" && sess.OwnerID != ownerID {
			continue
		}
		headers = append(headers, sess)
	}
	s.mu.RUnlock()

	sort.Slice(headers, func(i, j int) bool {
		return headers[i].UpdatedAt.After(headers[j].UpdatedAt)
	})
	if limit > 0 && len(headers) > limit {
		headers = headers[:limit]
	}
	return headers, nil
}

// SweepIdle removes every session whose last update is before olderThan
// and returns the removed headers. Messages are dropped with the session.
func (s *MemoryStore) SweepIdle(ctx context.Context, olderThan time.Time) ([]datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []datatypes.Session
	for id, ms := range s.sessions {
		ms.mu.Lock()
		sess := ms.session
		ms.mu.Unlock()
		if sess.UpdatedAt.Before(olderThan) {
			delete(s.sessions, id)
			removed = append(removed, sess)
		}
	}
	return removed, nil
}

func (s *MemoryStore) lookup(sessionID string) (*memorySession, error) {
	s.mu.RLock()
	ms, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, &ErrSessionNotFound{SessionID: sessionID}
	}
	return ms, nil
}
