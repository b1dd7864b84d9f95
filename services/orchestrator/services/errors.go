// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import "errors"

// ErrPersistenceDisabled is returned when persistence is requested but no
// durable store is configured. Handlers map it to persisted=false rather
// than a request failure.
var ErrPersistenceDisabled = errors.New("persistence is not configured")
