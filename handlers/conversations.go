// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianCare/store"
	"github.com/gin-gonic/gin"
)

// GetConversationHistory returns a conversation's turns in order.
func GetConversationHistory(convStore store.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("conversationId")
		turns, err := convStore.History(c.Request.Context(), id)
		if err != nil {
			if store.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
				return
			}
			slog.Error("Failed to load conversation history", "conversation_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": id, "turns": turns})
	}
}

// DeleteConversation removes a conversation and its history. Deleting an
// unknown id succeeds; the endpoint is idempotent.
func DeleteConversation(convStore store.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("conversationId")
		slog.Info("Received a request to delete a conversation", "conversation_id", id)
		if err := convStore.Delete(c.Request.Context(), id); err != nil {
			slog.Error("Failed to delete conversation", "conversation_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete the conversation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_conversation_id": id})
	}
}
