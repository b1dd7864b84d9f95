// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ktresler/Waypoint/services/decision"
	"github.com/ktresler/Waypoint/services/orchestrator/handlers"
	"github.com/ktresler/Waypoint/services/orchestrator/middleware"
)

// Deps carries the wired dependencies the route tree needs.
type Deps struct {
	Decision *handlers.DecisionDeps
	Session  *handlers.SessionDeps
	Engine   *decision.Engine

	// APIKey enables static bearer-token auth on /v1 when non-empty.
	APIKey string

	// EnableMetrics exposes /metrics when true.
	EnableMetrics bool
}

// SetupRoutes registers the full route tree on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HandleHealth())
	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.IdentityMiddleware(deps.APIKey))
	{
		v1.GET("/llm/health", handlers.HandleLLMHealth(deps.Engine))
		v1.POST("/validate", handlers.HandleValidateInput(deps.Decision.Metrics))

		decisions := v1.Group("/decisions")
		{
			decisions.POST("", handlers.HandleGenerateDecision(deps.Decision))
			decisions.POST("/refine", handlers.HandleRefineDecision(deps.Decision))
			decisions.POST("/clarify", handlers.HandleClarifyDecision(deps.Decision))
		}

		tasks := v1.Group("/tasks")
		{
			tasks.POST("/reorder", handlers.HandleReorderTasks(deps.Decision.Metrics))
			tasks.POST("/score", handlers.HandleScoreTask())
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.HandleCreateSession(deps.Session))
			sessions.GET("", handlers.HandleListSessions(deps.Session))
			sessions.GET("/:sessionId", handlers.HandleGetSession(deps.Session))
			sessions.POST("/:sessionId/messages", handlers.HandlePostSessionMessage(deps.Session))
			sessions.POST("/:sessionId/advance", handlers.HandleAdvancePhase(deps.Session))
		}
	}
}
