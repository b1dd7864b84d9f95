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

	"github.com/ktresler/Waypoint/pkg/textnorm"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
)

// HandleValidateInput handles POST /v1/validate.
//
// # Description
//
// Runs the input normalizer standalone so clients can pre-check text
// before spending a generation call. The response always carries the
// normalized form; invalid input is still a 200 with valid=false, because
// the validation itself succeeded.
func HandleValidateInput(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ValidateInputRequest
		if err := c.BindJSON(&req); err != nil {
			if metrics != nil {
				metrics.RecordRequest(observability.EndpointValidate, false)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result := textnorm.Validate(req.Input)
		if metrics != nil {
			metrics.RecordRequest(observability.EndpointValidate, true)
		}
		c.JSON(http.StatusOK, gin.H{
			"valid":      result.Valid,
			"errors":     result.Errors,
			"normalized": result.Normalized,
		})
	}
}
