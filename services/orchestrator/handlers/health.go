// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ktresler/Waypoint/services/decision"
)

// HandleHealth handles GET /health. Liveness only; no dependencies are
// probed.
func HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "waypoint-orchestrator"})
	}
}

// HandleLLMHealth handles GET /v1/llm/health.
//
// Issues a minimal probe against the configured LLM backend. A failing
// backend answers 503 with the failure detail so operators can tell an
// unreachable provider apart from a dead service.
func HandleLLMHealth(engine *decision.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := engine.HealthCheck(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": status,
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}
