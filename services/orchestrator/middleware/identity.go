// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// # Authentication Flow
//
// The identity middleware optionally enforces a static API key and
// resolves the caller's owner identity for downstream handlers:
//
//	Request
//	   │
//	   ▼
//	IdentityMiddleware
//	   │
//	   ├─► If an API key is configured, require
//	   │   "Authorization: Bearer <key>" to match it
//	   │
//	   ├─► Resolve owner from the X-Waypoint-Owner header
//	   │
//	   └─► Store owner ID in context
//	           │
//	           ▼
//	       Handler (retrieves via GetOwnerID)
//
// # Local Behavior
//
// With no API key configured (the default), all requests pass through and
// an absent owner header resolves to "local-user". This keeps the service
// usable with zero auth infrastructure.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// OwnerHeader carries the caller's owner identity.
const OwnerHeader = "X-Waypoint-Owner"

// DefaultOwnerID is used when no owner header is present.
const DefaultOwnerID = "local-user"

// ownerIDKey is the context key for the resolved owner.
// Using a typed key string prevents collisions with other context values.
const ownerIDKey = "waypoint_owner_id"

// =============================================================================
// Context Helpers
// =============================================================================

// SetOwnerID stores the resolved owner identity in the Gin context.
func SetOwnerID(c *gin.Context, ownerID string) {
	c.Set(ownerIDKey, ownerID)
}

// GetOwnerID retrieves the resolved owner identity from the Gin context.
// Returns DefaultOwnerID when the middleware did not run.
func GetOwnerID(c *gin.Context) string {
	if v, exists := c.Get(ownerIDKey); exists {
		if ownerID, ok := v.(string); ok && ownerID != "" {
			return ownerID
		}
	}
	return DefaultOwnerID
}

// =============================================================================
// Identity Middleware
// =============================================================================

// IdentityMiddleware creates a Gin middleware that enforces the optional
// API key and resolves the caller's owner identity.
//
// # Inputs
//
//   - apiKey: Static key to require on every request. Empty disables
//     enforcement.
//
// # Limitations
//
//   - Only supports Bearer token authentication.
//   - A single static key, not per-user credentials.
func IdentityMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey != "" {
			token := extractBearerToken(c)
			if token != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
		}

		owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if owner == "" {
			owner = DefaultOwnerID
		}
		SetOwnerID(c, owner)

		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
// The "Bearer" prefix is case-insensitive per RFC 7235. Returns "" when
// the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
