// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime rule logic. It uses the
Go embed package to bake phase_rules.yaml directly into the compiled binary,
so the phase behavior rules are immutable at runtime and travel with the
executable.
*/

package rules

import (
	_ "embed"
)

// PhaseRulePatterns holds the raw byte content of the 'phase_rules.yaml' file.
//
// Populated at compile time via the Go 'embed' directive. Pass these bytes
// directly to yaml.Unmarshal when constructing the phase policy.
//
//go:embed phase_rules.yaml
var PhaseRulePatterns []byte
