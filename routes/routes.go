// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianCare/handlers"
	"github.com/AleutianAI/AleutianCare/middleware"
	"github.com/AleutianAI/AleutianCare/services"
	"github.com/AleutianAI/AleutianCare/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(router *gin.Engine, care *services.CareService,
	convStore store.ConversationStore, approvedSources []string, apiKey string) {

	router.GET("/health", handlers.HealthCheck(approvedSources))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(apiKey))
	{
		v1.POST("/query", handlers.HandleQuery(care))
		// Conversation administration routes
		conversations := v1.Group("/conversations")
		{
			conversations.GET("/:conversationId/history", handlers.GetConversationHistory(convStore))
			conversations.DELETE("/:conversationId", handlers.DeleteConversation(convStore))
		}
	}
}
