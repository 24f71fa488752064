// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the Gin handlers for the care service API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/AleutianAI/AleutianCare/services"
	"github.com/gin-gonic/gin"
)

// HandleQuery answers one health question.
//
// # Description
//
// Validates the request body, runs the query pipeline, and maps failures
// to HTTP statuses: malformed or empty input is 400, a synthesis failure
// is 503, a client disconnect is 499. Degraded outcomes (search down, no
// approved source found) are 200 with an explanatory answer.
func HandleQuery(care *services.CareService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Received a health query", "conversation_id", req.ConversationId)
		resp, err := care.Answer(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// 499 mirrors nginx's "client closed request".
				c.Status(499)
				return
			}
			if services.IsSynthesisError(err) {
				slog.Error("Answer synthesis failed", "error", err)
				c.JSON(http.StatusServiceUnavailable,
					gin.H{"error": "the service is currently unavailable, please try again later"})
				return
			}
			slog.Error("Query pipeline failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer the query"})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
