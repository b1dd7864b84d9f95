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

	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
	"github.com/ktresler/Waypoint/services/tasks"
)

// HandleReorderTasks handles POST /v1/tasks/reorder.
//
// # Description
//
// Applies a manual priority change to an externally-persisted task list
// and returns the renumbered list. The service does not store tasks; the
// caller writes the result back to its own store.
func HandleReorderTasks(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		record := func(success bool) {
			if metrics != nil {
				metrics.RecordRequest(observability.EndpointReorder, success)
			}
		}

		var req datatypes.ReorderTasksRequest
		if err := c.BindJSON(&req); err != nil {
			record(false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			record(false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		reordered, found := tasks.ReorderOnManualChange(req.Tasks, req.TargetID, req.NewPriority)
		if !found {
			record(false)
			c.JSON(http.StatusNotFound, gin.H{"error": "target task not found in the supplied list"})
			return
		}

		record(true)
		c.JSON(http.StatusOK, gin.H{"tasks": reordered})
	}
}

// HandleScoreTask handles POST /v1/tasks/score.
//
// Returns the initial-priority heuristic score for a task title. Used by
// task CRUD surfaces when a task arrives without an explicit priority.
func HandleScoreTask() gin.HandlerFunc {
	type scoreRequest struct {
		Title string `json:"title"`
	}
	return func(c *gin.Context) {
		var req scoreRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title must not be empty"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"score": tasks.ScoreForPriority(req.Title)})
	}
}
