// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports service status, which backends are configured, and
// the approved source allow-list.
func HealthCheck(approvedSources []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"services": gin.H{
				"llm":    os.Getenv("OPENAI_API_KEY") != "" || fileExists("/run/secrets/openai_api_key"),
				"search": os.Getenv("SERPAPI_KEY") != "",
			},
			"approved_sources": approvedSources,
		})
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
