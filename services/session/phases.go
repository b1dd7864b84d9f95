// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"fmt"

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
)

// StateError is a synchronous rejection of a phase transition. It carries a
// human-readable reason and is never retried.
type StateError struct {
	Phase  datatypes.Phase
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot advance from phase %s: %s", e.Phase, e.Reason)
}

// NextPhase returns the successor of p in the fixed order. ok is false when
// p is terminal or unknown.
func NextPhase(p datatypes.Phase) (datatypes.Phase, bool) {
	ord := p.Ordinal()
	if ord < 0 || ord >= len(datatypes.PhaseOrder)-1 {
		return "", false
	}
	return datatypes.PhaseOrder[ord+1], true
}

// CanAdvance applies the generic forward-only rule: any non-terminal phase
// may advance. It knows nothing about which phases are implemented.
func CanAdvance(p datatypes.Phase) error {
	if p.Ordinal() < 0 {
		return &StateError{Phase: p, Reason: "unknown phase"}
	}
	if p.Terminal() {
		return &StateError{Phase: p, Reason: "session is already in its terminal phase"}
	}
	return nil
}

// AdvanceTarget returns the phase a session should advance to, or a
// *StateError when advancing is rejected.
//
// Leaving DUMP is rejected even though the generic rule would allow it:
// phase 2 has no implemented behavior, and silently moving users into a
// phase governed by placeholder prompts would be worse than refusing. This
// is a deliberate product override, not a state-machine limitation; remove
// it when CLARITY ships.
func AdvanceTarget(p datatypes.Phase) (datatypes.Phase, error) {
	if err := CanAdvance(p); err != nil {
		return "", err
	}
	if p == datatypes.PhaseDump {
		return "", &StateError{Phase: p, Reason: "phase CLARITY is not implemented yet"}
	}
	next, ok := NextPhase(p)
	if !ok {
		return "", &StateError{Phase: p, Reason: "no next phase"}
	}
	return next, nil
}
